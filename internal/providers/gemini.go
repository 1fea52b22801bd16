package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/jackzampolin/cuentos/internal/story"
)

const (
	GeminiTextName         = "gemini"
	GeminiTextDefaultModel = "gemini-2.5-flash-preview-04-17"
	ImagenName             = "imagen"
	ImagenDefaultModel     = "imagen-3.0-generate-002"
)

// GeminiConfig holds configuration shared by the genai-backed clients.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string        // Optional (tests, proxies)
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// genaiClient lazily builds one SDK client per provider.
type genaiClient struct {
	cfg    GeminiConfig
	once   sync.Once
	client *genai.Client
	err    error
}

func (g *genaiClient) checkKey() error {
	if g.cfg.APIKey == "" {
		return story.ConfigError(fmt.Errorf("%w: google api key", story.ErrMissingCredential))
	}
	return nil
}

func (g *genaiClient) get(ctx context.Context) (*genai.Client, error) {
	if err := g.checkKey(); err != nil {
		return nil, err
	}
	g.once.Do(func() {
		httpClient := g.cfg.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: g.cfg.Timeout}
		}
		cc := &genai.ClientConfig{
			APIKey:     g.cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		}
		if g.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
		}
		g.client, g.err = genai.NewClient(ctx, cc)
	})
	return g.client, g.err
}

func withGeminiDefaults(cfg GeminiConfig, model string) GeminiConfig {
	if cfg.Model == "" {
		cfg.Model = model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return cfg
}

// mapGenaiError converts SDK API errors into the package's error types.
func mapGenaiError(provider string, err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return err
		}
		apiErr = *ptr
	}
	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Status
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    fmt.Sprintf("%s rate limited: %s", provider, msg),
			StatusCode: apiErr.Code,
		}
	}
	return &StatusError{Provider: provider, StatusCode: apiErr.Code, Message: msg}
}

// GeminiTextClient implements TextClient using Gemini through the genai SDK.
type GeminiTextClient struct {
	model string
	sdk   *genaiClient
}

// NewGeminiTextClient creates a new Gemini text client.
func NewGeminiTextClient(cfg GeminiConfig) *GeminiTextClient {
	cfg = withGeminiDefaults(cfg, GeminiTextDefaultModel)
	return &GeminiTextClient{model: cfg.Model, sdk: &genaiClient{cfg: cfg}}
}

// Name returns the provider identifier.
func (c *GeminiTextClient) Name() string { return GeminiTextName }

// Model returns the configured model.
func (c *GeminiTextClient) Model() string { return c.model }

// CheckCredentials reports a missing API key.
func (c *GeminiTextClient) CheckCredentials() error { return c.sdk.checkKey() }

// Generate sends a single prompt and returns the response text.
func (c *GeminiTextClient) Generate(ctx context.Context, req *TextRequest) (*TextResult, error) {
	start := time.Now()
	client, err := c.sdk.get(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, mapGenaiError(c.Name(), err)
	}
	return &TextResult{
		Text:          resp.Text(),
		Provider:      c.Name(),
		Model:         c.model,
		ExecutionTime: time.Since(start),
	}, nil
}

// ImagenClient implements ImageProvider using Imagen through the genai SDK.
type ImagenClient struct {
	model string
	sdk   *genaiClient
}

// NewImagenClient creates a new Imagen client.
func NewImagenClient(cfg GeminiConfig) *ImagenClient {
	cfg = withGeminiDefaults(cfg, ImagenDefaultModel)
	return &ImagenClient{model: cfg.Model, sdk: &genaiClient{cfg: cfg}}
}

// Name returns the provider identifier.
func (c *ImagenClient) Name() string { return ImagenName }

// CheckCredentials reports a missing API key.
func (c *ImagenClient) CheckCredentials() error { return c.sdk.checkKey() }

// Generate requests one JPEG for the prompt.
func (c *ImagenClient) Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	client, err := c.sdk.get(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateImages(ctx, c.model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
	})
	if err != nil {
		return nil, mapGenaiError(c.Name(), err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil ||
		len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, fmt.Errorf("%w: imagen returned no image", story.ErrMalformedResponse)
	}

	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return &ImageResult{Data: img.ImageBytes, MIMEType: mime, Provider: c.Name()}, nil
}

var (
	_ TextClient    = (*GeminiTextClient)(nil)
	_ ImageProvider = (*ImagenClient)(nil)
)
