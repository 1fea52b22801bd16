package providers

import (
	"os"
)

// TestConfig holds provider credentials loaded from environment variables.
// Live tests skip themselves when the matching key is absent.
type TestConfig struct {
	GoogleAPIKey    string
	StabilityAPIKey string
	OpenAIAPIKey    string
}

// LoadTestConfig loads provider API keys from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		StabilityAPIKey: os.Getenv("STABILITY_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
	}
}

// HasGoogle returns true if a Google AI key is configured.
func (c TestConfig) HasGoogle() bool { return c.GoogleAPIKey != "" }

// HasStability returns true if a Stability AI key is configured.
func (c TestConfig) HasStability() bool { return c.StabilityAPIKey != "" }

// NewGeminiTTSClient creates a Gemini TTS client from test config.
// Returns nil if not configured.
func (c TestConfig) NewGeminiTTSClient() *GeminiTTSClient {
	if !c.HasGoogle() {
		return nil
	}
	return NewGeminiTTSClient(GeminiTTSConfig{APIKey: c.GoogleAPIKey})
}

// NewStabilityClient creates a Stability client from test config.
// Returns nil if not configured.
func (c TestConfig) NewStabilityClient() *StabilityClient {
	if !c.HasStability() {
		return nil
	}
	return NewStabilityClient(StabilityConfig{APIKey: c.StabilityAPIKey})
}
