package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry holds named text, image and narration clients.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	text       map[string]TextClient
	images     map[string]ImageProvider
	narrators  map[string]Narrator
	configured map[string]ProviderConfig
	logger     *slog.Logger
}

// NewRegistry creates a registry holding only the placeholder image provider.
func NewRegistry() *Registry {
	return &Registry{
		text:       make(map[string]TextClient),
		images:     map[string]ImageProvider{PlaceholderName: PlaceholderProvider{}},
		narrators:  make(map[string]Narrator),
		configured: make(map[string]ProviderConfig),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterText registers a text client by name.
func (r *Registry) RegisterText(name string, client TextClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text[name] = client
	r.logger.Info("registered text client", "name", name)
}

// RegisterImage registers an image provider by name.
func (r *Registry) RegisterImage(name string, provider ImageProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[name] = provider
	r.logger.Info("registered image provider", "name", name)
}

// RegisterNarrator registers a narrator by name.
func (r *Registry) RegisterNarrator(name string, narrator Narrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.narrators[name] = narrator
	r.logger.Info("registered narrator", "name", name)
}

// Text returns a text client by name.
func (r *Registry) Text(name string) (TextClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.text[name]
	if !ok {
		return nil, fmt.Errorf("text provider not found: %s", name)
	}
	return c, nil
}

// Image returns an image provider by name.
func (r *Registry) Image(name string) (ImageProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.images[name]
	if !ok {
		return nil, fmt.Errorf("image provider not found: %s", name)
	}
	return p, nil
}

// Narrator returns a narrator by name.
func (r *Registry) Narrator(name string) (Narrator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.narrators[name]
	if !ok {
		return nil, fmt.Errorf("narration provider not found: %s", name)
	}
	return n, nil
}

// Names lists registered providers per role, sorted.
func (r *Registry) Names() (text, images, narrators []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.text), sortedKeys(r.images), sortedKeys(r.narrators)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ProviderConfig matches config.ProviderCfg with a resolved API key.
type ProviderConfig struct {
	Type    string // text: gemini|openai|anthropic; image: imagen|stability|openai; narration: gemini|openai
	Model   string
	Voice   string
	Format  string
	APIKey  string
	BaseURL string
	Enabled bool
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	Text      map[string]ProviderConfig
	Image     map[string]ProviderConfig
	Narration map[string]ProviderConfig
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Providers are registered even without an API key so that the missing
// credential surfaces as a configuration error on first use.
func NewRegistryFromConfig(cfg RegistryConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.logger = logger
	}
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured are unregistered, and providers
// whose settings changed are recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	apply := func(role string, entries map[string]ProviderConfig, register func(name string, pc ProviderConfig) bool) {
		for name, pc := range entries {
			if !pc.Enabled {
				continue
			}
			key := role + "/" + name
			want[key] = true
			if prev, ok := r.configured[key]; ok && prev == pc {
				continue
			}
			if !register(name, pc) {
				r.logger.Warn("unknown provider type", "role", role, "name", name, "type", pc.Type)
				continue
			}
			r.configured[key] = pc
			r.logger.Info("configured provider", "role", role, "name", name, "type", pc.Type)
		}
	}

	apply("text", cfg.Text, func(name string, pc ProviderConfig) bool {
		c := createTextClient(pc)
		if c != nil {
			r.text[name] = c
		}
		return c != nil
	})
	apply("image", cfg.Image, func(name string, pc ProviderConfig) bool {
		p := createImageProvider(pc)
		if p != nil {
			r.images[name] = p
		}
		return p != nil
	})
	apply("narration", cfg.Narration, func(name string, pc ProviderConfig) bool {
		n := createNarrator(pc)
		if n != nil {
			r.narrators[name] = n
		}
		return n != nil
	})

	for key := range r.configured {
		if want[key] {
			continue
		}
		delete(r.configured, key)
		role, name, _ := strings.Cut(key, "/")
		switch role {
		case "text":
			delete(r.text, name)
		case "image":
			delete(r.images, name)
		case "narration":
			delete(r.narrators, name)
		}
		r.logger.Info("unregistered provider", "role", role, "name", name)
	}
}

func createTextClient(pc ProviderConfig) TextClient {
	switch pc.Type {
	case "gemini":
		return NewGeminiTextClient(GeminiConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL})
	case "openai":
		return NewOpenAITextClient(OpenAIConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL})
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL})
	default:
		return nil
	}
}

func createImageProvider(pc ProviderConfig) ImageProvider {
	switch pc.Type {
	case "imagen":
		return NewImagenClient(GeminiConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL})
	case "stability":
		return NewStabilityClient(StabilityConfig{APIKey: pc.APIKey, Model: pc.Model, OutputFormat: pc.Format, BaseURL: pc.BaseURL})
	case "openai":
		return NewOpenAIImageClient(OpenAIConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL})
	case "placeholder":
		return PlaceholderProvider{}
	default:
		return nil
	}
}

func createNarrator(pc ProviderConfig) Narrator {
	switch pc.Type {
	case "gemini":
		return NewGeminiTTSClient(GeminiTTSConfig{APIKey: pc.APIKey, Model: pc.Model, Voice: pc.Voice, BaseURL: pc.BaseURL})
	case "openai":
		return NewOpenAITTSClient(OpenAITTSConfig{
			OpenAIConfig: OpenAIConfig{APIKey: pc.APIKey, Model: pc.Model, BaseURL: pc.BaseURL},
			Voice:        pc.Voice,
			Format:       pc.Format,
		})
	default:
		return nil
	}
}
