package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jackzampolin/cuentos/internal/story"
)

const (
	OpenAITextName          = "openai"
	OpenAIImageName         = "openai-image"
	openAITextDefaultModel  = string(openai.ChatModelGPT4oMini)
	openAIImageDefaultModel = string(openai.ImageModelDallE3)
)

// OpenAIConfig holds configuration shared by the OpenAI SDK clients.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	MaxRetries int           // Retry attempts for SDK transport
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

func newOpenAIClient(cfg OpenAIConfig) openai.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}

func checkOpenAIKey(apiKey string) error {
	if apiKey == "" {
		return story.ConfigError(fmt.Errorf("%w: openai api key", story.ErrMissingCredential))
	}
	return nil
}

// OpenAITextClient implements TextClient with chat completions.
type OpenAITextClient struct {
	apiKey string
	model  string
	client openai.Client
}

// NewOpenAITextClient creates a new OpenAI chat client.
func NewOpenAITextClient(cfg OpenAIConfig) *OpenAITextClient {
	if cfg.Model == "" {
		cfg.Model = openAITextDefaultModel
	}
	return &OpenAITextClient{apiKey: cfg.APIKey, model: cfg.Model, client: newOpenAIClient(cfg)}
}

// Name returns the provider identifier.
func (c *OpenAITextClient) Name() string { return OpenAITextName }

// CheckCredentials reports a missing API key.
func (c *OpenAITextClient) CheckCredentials() error { return checkOpenAIKey(c.apiKey) }

// Generate sends the prompt as a single user message.
// JSON is not forced through response_format because json_object mode rejects
// top-level arrays; the caller's fence-tolerant parser handles the reply.
func (c *OpenAITextClient) Generate(ctx context.Context, req *TextRequest) (*TextResult, error) {
	start := time.Now()
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(c.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", story.ErrMalformedResponse)
	}
	return &TextResult{
		Text:          resp.Choices[0].Message.Content,
		Provider:      c.Name(),
		Model:         c.model,
		ExecutionTime: time.Since(start),
	}, nil
}

// OpenAIImageClient implements ImageProvider with base64 image generation.
type OpenAIImageClient struct {
	apiKey string
	model  string
	client openai.Client
}

// NewOpenAIImageClient creates a new OpenAI image client.
func NewOpenAIImageClient(cfg OpenAIConfig) *OpenAIImageClient {
	if cfg.Model == "" {
		cfg.Model = openAIImageDefaultModel
	}
	return &OpenAIImageClient{apiKey: cfg.APIKey, model: cfg.Model, client: newOpenAIClient(cfg)}
}

// Name returns the provider identifier.
func (c *OpenAIImageClient) Name() string { return OpenAIImageName }

// CheckCredentials reports a missing API key.
func (c *OpenAIImageClient) CheckCredentials() error { return checkOpenAIKey(c.apiKey) }

// Generate requests one image as inline base64.
func (c *OpenAIImageClient) Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(c.model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, mapOpenAIError(c.Name(), err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: openai returned no image", story.ErrMalformedResponse)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: image payload is not base64: %v", story.ErrMalformedResponse, err)
	}
	return &ImageResult{Data: data, MIMEType: "image/png", Provider: c.Name()}, nil
}

func mapOpenAIError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("%s rate limited: %s", provider, apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &StatusError{Provider: provider, StatusCode: apiErr.StatusCode, Message: msg}
	}
	return err
}

var (
	_ TextClient    = (*OpenAITextClient)(nil)
	_ ImageProvider = (*OpenAIImageClient)(nil)
)
