package config

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry represents a single documented configuration key.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the documented scalar keys and their defaults.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// Credentials
		{Key: "credentials.google_api_key", Value: d.Credentials.GoogleAPIKey, Description: "Google AI key for Gemini text, Imagen and Gemini TTS"},
		{Key: "credentials.stability_api_key", Value: d.Credentials.StabilityAPIKey, Description: "Stability AI key for stable-image generation"},
		{Key: "credentials.openai_api_key", Value: d.Credentials.OpenAIAPIKey, Description: "OpenAI key for chat, images and speech"},
		{Key: "credentials.anthropic_api_key", Value: d.Credentials.AnthropicAPIKey, Description: "Anthropic key for Claude text generation"},

		// Strategy selection
		{Key: "default_strategy", Value: d.DefaultStrategy, Description: "Strategy used when none is requested"},

		// Story defaults
		{Key: "story.age_range", Value: d.Story.AgeRange, Description: "Default audience: early (3-5), middle (6-8) or late (9-11)"},
		{Key: "story.num_pages", Value: d.Story.NumPages, Description: "Default page count (even, 2 to 24)"},
		{Key: "story.high_quality_images", Value: d.Story.HighQualityImages, Description: "Generate illustrations instead of placeholders"},

		// Pipeline
		{Key: "pipeline.media_failure_policy", Value: d.Pipeline.MediaFailurePolicy, Description: "degrade: failed images become error placeholders; abort: discard the story"},
		{Key: "pipeline.retry_attempts", Value: d.Pipeline.RetryAttempts, Description: "Attempts per upstream call for transient failures"},
		{Key: "pipeline.retry_delay", Value: d.Pipeline.RetryDelay, Description: "Initial backoff between attempts"},
		{Key: "pipeline.max_retry_delay", Value: d.Pipeline.MaxRetryDelay, Description: "Upper bound for backoff and Retry-After waits"},
		{Key: "pipeline.requests_per_second", Value: d.Pipeline.RequestsPerSecond, Description: "Provider call pacing (0 disables)"},
		{Key: "pipeline.burst", Value: d.Pipeline.Burst, Description: "Calls allowed above the pacing rate"},

		// Server
		{Key: "server.host", Value: d.Server.Host, Description: "HTTP listen host"},
		{Key: "server.port", Value: d.Server.Port, Description: "HTTP listen port"},
		{Key: "server.session_ttl", Value: d.Server.SessionTTL, Description: "How long story sessions are kept after their last update"},
		{Key: "server.metrics_limit", Value: d.Server.MetricsLimit, Description: "Pipeline call metrics kept in memory"},

		// Session store
		{Key: "store.type", Value: d.Store.Type, Description: "Session store: memory or redis"},
		{Key: "store.redis_addr", Value: d.Store.RedisAddr, Description: "Redis address for the redis store"},
		{Key: "store.redis_password", Value: d.Store.RedisPassword, Description: "Redis password"},
		{Key: "store.redis_db", Value: d.Store.RedisDB, Description: "Redis database number"},

		// Logging
		{Key: "log_level", Value: d.LogLevel, Description: "debug, info, warn or error"},
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
