package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jackzampolin/cuentos/internal/story"
)

const (
	AnthropicName         = "anthropic"
	AnthropicDefaultModel = "claude-sonnet-4-20250514"
	anthropicMaxTokens    = 4096
)

// AnthropicConfig holds configuration for the Anthropic messages client.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int64
	Timeout    time.Duration
	BaseURL    string       // Optional (tests)
	HTTPClient *http.Client // Optional (tests)
}

// AnthropicClient implements TextClient with the Messages API.
type AnthropicClient struct {
	apiKey    string
	model     string
	maxTokens int64
	client    anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = AnthropicDefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = anthropicMaxTokens
	}
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
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    anthropic.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *AnthropicClient) Name() string { return AnthropicName }

// CheckCredentials reports a missing API key.
func (c *AnthropicClient) CheckCredentials() error {
	if c.apiKey == "" {
		return story.ConfigError(fmt.Errorf("%w: anthropic api key", story.ErrMissingCredential))
	}
	return nil
}

// Generate sends the prompt as a single user message and joins the text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, req *TextRequest) (*TextResult, error) {
	start := time.Now()
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return &TextResult{
		Text:          sb.String(),
		Provider:      c.Name(),
		Model:         string(resp.Model),
		ExecutionTime: time.Since(start),
	}, nil
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("%s rate limited", AnthropicName),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		return &StatusError{Provider: AnthropicName, StatusCode: apiErr.StatusCode, Message: http.StatusText(apiErr.StatusCode)}
	}
	return err
}

var _ TextClient = (*AnthropicClient)(nil)
