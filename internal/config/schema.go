package config

import (
	"time"
)

// Config holds cuentos configuration.
// Stored at: ~/.cuentos/config.yaml
type Config struct {
	Credentials        CredentialsCfg         `mapstructure:"credentials" yaml:"credentials"`
	TextProviders      map[string]ProviderCfg `mapstructure:"text_providers" yaml:"text_providers"`
	ImageProviders     map[string]ProviderCfg `mapstructure:"image_providers" yaml:"image_providers"`
	NarrationProviders map[string]ProviderCfg `mapstructure:"narration_providers" yaml:"narration_providers"`
	Strategies         map[string]StrategyCfg `mapstructure:"strategies" yaml:"strategies"`
	DefaultStrategy    string                 `mapstructure:"default_strategy" yaml:"default_strategy"`
	Story              StoryCfg               `mapstructure:"story" yaml:"story"`
	Pipeline           PipelineCfg            `mapstructure:"pipeline" yaml:"pipeline"`
	Server             ServerCfg              `mapstructure:"server" yaml:"server"`
	Store              StoreCfg               `mapstructure:"store" yaml:"store"`
	Prompts            map[string]string      `mapstructure:"prompts" yaml:"prompts,omitempty"` // idea|title|character|pages
	LogLevel           string                 `mapstructure:"log_level" yaml:"log_level"`
}

// CredentialsCfg holds API keys shared by every provider of a vendor.
// Values support ${ENV_VAR} syntax.
type CredentialsCfg struct {
	GoogleAPIKey    string `mapstructure:"google_api_key" yaml:"google_api_key"`
	StabilityAPIKey string `mapstructure:"stability_api_key" yaml:"stability_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
}

// ProviderCfg configures a text, image or narration provider.
type ProviderCfg struct {
	Type    string `mapstructure:"type" yaml:"type"`                   // text: gemini|openai|anthropic; image: imagen|stability|openai|placeholder; narration: gemini|openai
	Model   string `mapstructure:"model" yaml:"model,omitempty"`       // Model name (provider default when empty)
	Voice   string `mapstructure:"voice" yaml:"voice,omitempty"`       // Narration voice
	Format  string `mapstructure:"format" yaml:"format,omitempty"`     // Output format (jpeg, pcm, mp3...)
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`   // Overrides the vendor credential (supports ${ENV_VAR} syntax)
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"` // Endpoint override
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// StrategyCfg binds one provider per role. HTMLAudio picks how narration
// is embedded in HTML exports: element, webaudio, or empty for automatic.
type StrategyCfg struct {
	Text      string `mapstructure:"text" yaml:"text"`
	Image     string `mapstructure:"image" yaml:"image"`
	Narration string `mapstructure:"narration" yaml:"narration"`
	HTMLAudio string `mapstructure:"html_audio" yaml:"html_audio,omitempty"`
}

// StoryCfg holds request defaults for new stories.
type StoryCfg struct {
	AgeRange          string `mapstructure:"age_range" yaml:"age_range"`
	NumPages          int    `mapstructure:"num_pages" yaml:"num_pages"`
	HighQualityImages bool   `mapstructure:"high_quality_images" yaml:"high_quality_images"`
}

// PipelineCfg tunes the generation pipeline.
type PipelineCfg struct {
	MediaFailurePolicy string  `mapstructure:"media_failure_policy" yaml:"media_failure_policy"` // degrade|abort
	RetryAttempts      uint    `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay         string  `mapstructure:"retry_delay" yaml:"retry_delay"`                 // Duration, e.g. "500ms"
	MaxRetryDelay      string  `mapstructure:"max_retry_delay" yaml:"max_retry_delay"`         // Duration, e.g. "30s"
	RequestsPerSecond  float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"` // 0 disables pacing
	Burst              int     `mapstructure:"burst" yaml:"burst"`
}

// ServerCfg configures the HTTP service.
type ServerCfg struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         string `mapstructure:"port" yaml:"port"`
	SessionTTL   string `mapstructure:"session_ttl" yaml:"session_ttl"`     // Duration, e.g. "2h"
	MetricsLimit int    `mapstructure:"metrics_limit" yaml:"metrics_limit"` // pipeline calls kept in memory
}

// StoreCfg selects the session store.
type StoreCfg struct {
	Type          string `mapstructure:"type" yaml:"type"` // memory|redis
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Credentials: CredentialsCfg{
			GoogleAPIKey:    "${GOOGLE_API_KEY}",
			StabilityAPIKey: "${STABILITY_API_KEY}",
			OpenAIAPIKey:    "${OPENAI_API_KEY}",
			AnthropicAPIKey: "${ANTHROPIC_API_KEY}",
		},
		TextProviders: map[string]ProviderCfg{
			"gemini":    {Type: "gemini", Model: "gemini-2.5-flash", Enabled: true},
			"openai":    {Type: "openai", Model: "gpt-4o-mini", Enabled: true},
			"anthropic": {Type: "anthropic", Model: "claude-sonnet-4-20250514", Enabled: true},
		},
		ImageProviders: map[string]ProviderCfg{
			"imagen":    {Type: "imagen", Model: "imagen-3.0-generate-002", Enabled: true},
			"stability": {Type: "stability", Model: "core", Format: "jpeg", Enabled: true},
			"openai":    {Type: "openai", Model: "dall-e-3", Enabled: true},
		},
		NarrationProviders: map[string]ProviderCfg{
			"gemini": {Type: "gemini", Model: "gemini-2.5-flash-preview-tts", Voice: "kore", Enabled: true},
			"openai": {Type: "openai", Model: "gpt-4o-mini-tts", Voice: "coral", Format: "mp3", Enabled: true},
		},
		Strategies: map[string]StrategyCfg{
			"gemini":    {Text: "gemini", Image: "imagen", Narration: "gemini", HTMLAudio: "element"},
			"openai":    {Text: "openai", Image: "openai", Narration: "openai", HTMLAudio: "element"},
			"stability": {Text: "anthropic", Image: "stability", Narration: "gemini", HTMLAudio: "webaudio"},
		},
		DefaultStrategy: "gemini",
		Story: StoryCfg{
			AgeRange:          "middle",
			NumPages:          8,
			HighQualityImages: false,
		},
		Pipeline: PipelineCfg{
			MediaFailurePolicy: "degrade",
			RetryAttempts:      3,
			RetryDelay:         "500ms",
			MaxRetryDelay:      "30s",
			RequestsPerSecond:  0,
			Burst:              2,
		},
		Server: ServerCfg{
			Host:         "127.0.0.1",
			Port:         "8080",
			SessionTTL:   "2h",
			MetricsLimit: 10000,
		},
		Store: StoreCfg{
			Type:      "memory",
			RedisAddr: "localhost:6379",
		},
		LogLevel: "info",
	}
}

// GetStrategy returns a strategy binding by name. An empty name selects
// the default strategy.
func (c *Config) GetStrategy(name string) (string, StrategyCfg, bool) {
	if name == "" {
		name = c.DefaultStrategy
	}
	cfg, ok := c.Strategies[name]
	return name, cfg, ok
}

// StrategyNames returns the configured strategy names.
func (c *Config) StrategyNames() []string {
	return sortedKeys(c.Strategies)
}

// PromptOverrides returns the prompt overrides keyed by resolver key.
// Config keys are short names because viper treats dots as nesting.
func (c *Config) PromptOverrides() map[string]string {
	out := make(map[string]string, len(c.Prompts))
	for name, text := range c.Prompts {
		if text == "" {
			continue
		}
		out["story."+name] = text
	}
	return out
}

// RetryDelayDuration parses RetryDelay, falling back to 500ms.
func (p PipelineCfg) RetryDelayDuration() time.Duration {
	return parseDuration(p.RetryDelay, 500*time.Millisecond)
}

// MaxRetryDelayDuration parses MaxRetryDelay, falling back to 30s.
func (p PipelineCfg) MaxRetryDelayDuration() time.Duration {
	return parseDuration(p.MaxRetryDelay, 30*time.Second)
}

// SessionTTLDuration parses SessionTTL, falling back to 2h.
func (s ServerCfg) SessionTTLDuration() time.Duration {
	return parseDuration(s.SessionTTL, 2*time.Hour)
}

// Addr returns host:port.
func (s ServerCfg) Addr() string {
	return s.Host + ":" + s.Port
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
