package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/cuentos/internal/providers"
)

// EnvPrefix prefixes every environment override, e.g. CUENTOS_LOG_LEVEL.
const EnvPrefix = "CUENTOS"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml and $HOME/.cuentos/config.yaml.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used for reload messages.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	defaults := DefaultConfig()
	v.SetDefault("credentials.google_api_key", defaults.Credentials.GoogleAPIKey)
	v.SetDefault("credentials.stability_api_key", defaults.Credentials.StabilityAPIKey)
	v.SetDefault("credentials.openai_api_key", defaults.Credentials.OpenAIAPIKey)
	v.SetDefault("credentials.anthropic_api_key", defaults.Credentials.AnthropicAPIKey)
	v.SetDefault("text_providers", defaults.TextProviders)
	v.SetDefault("image_providers", defaults.ImageProviders)
	v.SetDefault("narration_providers", defaults.NarrationProviders)
	v.SetDefault("strategies", defaults.Strategies)
	v.SetDefault("default_strategy", defaults.DefaultStrategy)
	v.SetDefault("story.age_range", defaults.Story.AgeRange)
	v.SetDefault("story.num_pages", defaults.Story.NumPages)
	v.SetDefault("story.high_quality_images", defaults.Story.HighQualityImages)
	v.SetDefault("pipeline.media_failure_policy", defaults.Pipeline.MediaFailurePolicy)
	v.SetDefault("pipeline.retry_attempts", defaults.Pipeline.RetryAttempts)
	v.SetDefault("pipeline.retry_delay", defaults.Pipeline.RetryDelay)
	v.SetDefault("pipeline.max_retry_delay", defaults.Pipeline.MaxRetryDelay)
	v.SetDefault("pipeline.requests_per_second", defaults.Pipeline.RequestsPerSecond)
	v.SetDefault("pipeline.burst", defaults.Pipeline.Burst)
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.session_ttl", defaults.Server.SessionTTL)
	v.SetDefault("server.metrics_limit", defaults.Server.MetricsLimit)
	v.SetDefault("store.type", defaults.Store.Type)
	v.SetDefault("store.redis_addr", defaults.Store.RedisAddr)
	v.SetDefault("store.redis_password", defaults.Store.RedisPassword)
	v.SetDefault("store.redis_db", defaults.Store.RedisDB)
	v.SetDefault("log_level", defaults.LogLevel)

	// Environment variables with CUENTOS_ prefix; nested keys use underscores.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cuentos")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cm.reload(e.Name)
	})
	cm.v.WatchConfig()
}

// reload re-reads the viper state and notifies callbacks.
func (cm *Manager) reload(source string) {
	cfg, err := cm.load()
	if err != nil {
		cm.mu.RLock()
		logger := cm.logger
		cm.mu.RUnlock()
		logger.Warn("config reload failed", "file", source, "error", err)
		return
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	logger := cm.logger
	cm.mu.Unlock()

	logger.Info("config reloaded", "file", source)
	for _, fn := range callbacks {
		fn(cfg)
	}
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// credentialFor returns the vendor credential used by a provider type.
func (c *Config) credentialFor(typ string) string {
	switch typ {
	case "gemini", "imagen":
		return c.Credentials.GoogleAPIKey
	case "stability":
		return c.Credentials.StabilityAPIKey
	case "openai":
		return c.Credentials.OpenAIAPIKey
	case "anthropic":
		return c.Credentials.AnthropicAPIKey
	}
	return ""
}

// ResolveAPIKey resolves a provider's key: its own api_key when set,
// otherwise the vendor credential. ${ENV_VAR} references are expanded.
func (c *Config) ResolveAPIKey(pc ProviderCfg) string {
	if pc.APIKey != "" {
		return ResolveEnvVars(pc.APIKey)
	}
	return ResolveEnvVars(c.credentialFor(pc.Type))
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	convert := func(in map[string]ProviderCfg) map[string]providers.ProviderConfig {
		out := make(map[string]providers.ProviderConfig, len(in))
		for name, pc := range in {
			out[name] = providers.ProviderConfig{
				Type:    pc.Type,
				Model:   pc.Model,
				Voice:   pc.Voice,
				Format:  pc.Format,
				APIKey:  c.ResolveAPIKey(pc),
				BaseURL: pc.BaseURL,
				Enabled: pc.Enabled,
			}
		}
		return out
	}
	return providers.RegistryConfig{
		Text:      convert(c.TextProviders),
		Image:     convert(c.ImageProviders),
		Narration: convert(c.NarrationProviders),
	}
}

// Validate checks cross references between strategies and providers.
func (c *Config) Validate() error {
	var problems []string
	for _, name := range c.StrategyNames() {
		s := c.Strategies[name]
		check := func(role, provider string, known map[string]ProviderCfg) {
			if provider == "" {
				problems = append(problems, fmt.Sprintf("strategy %q has no %s provider", name, role))
				return
			}
			if role == "image" && provider == providers.PlaceholderName {
				return
			}
			if _, ok := known[provider]; !ok {
				problems = append(problems, fmt.Sprintf("strategy %q references unknown %s provider %q", name, role, provider))
			}
		}
		check("text", s.Text, c.TextProviders)
		check("image", s.Image, c.ImageProviders)
		check("narration", s.Narration, c.NarrationProviders)
	}
	if c.DefaultStrategy != "" {
		if _, ok := c.Strategies[c.DefaultStrategy]; !ok {
			problems = append(problems, fmt.Sprintf("default_strategy %q is not defined", c.DefaultStrategy))
		}
	}
	switch c.Pipeline.MediaFailurePolicy {
	case "", "degrade", "abort":
	default:
		problems = append(problems, fmt.Sprintf("pipeline.media_failure_policy %q must be degrade or abort", c.Pipeline.MediaFailurePolicy))
	}
	switch c.Store.Type {
	case "", "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("store.type %q must be memory or redis", c.Store.Type))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := []byte(`# Cuentos configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export GOOGLE_API_KEY=xxx STABILITY_API_KEY=xxx OPENAI_API_KEY=xxx ANTHROPIC_API_KEY=xxx
# Any key can be overridden with CUENTOS_<SECTION>_<KEY>, e.g. CUENTOS_PIPELINE_MEDIA_FAILURE_POLICY=abort

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
