package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jackzampolin/cuentos/internal/story"
)

const (
	StabilityName           = "stability"
	StabilityBaseURL        = "https://api.stability.ai"
	StabilityDefaultModel   = "core"
	StabilityDefaultFormat  = "jpeg"
	StabilityDefaultAspect  = "4:3"
	stabilityGeneratePrefix = "/v2beta/stable-image/generate/"
)

// StabilityConfig holds configuration for the Stability AI image client.
type StabilityConfig struct {
	APIKey       string
	Model        string // "core" (default), "ultra", "sd3"
	OutputFormat string // jpeg (default), png, webp
	AspectRatio  string
	BaseURL      string // Optional (tests)
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// StabilityClient implements ImageProvider with a multipart POST that returns
// raw image bytes.
type StabilityClient struct {
	apiKey       string
	model        string
	outputFormat string
	aspectRatio  string
	baseURL      string
	client       *http.Client
}

// NewStabilityClient creates a new Stability AI client.
func NewStabilityClient(cfg StabilityConfig) *StabilityClient {
	if cfg.Model == "" {
		cfg.Model = StabilityDefaultModel
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = StabilityDefaultFormat
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = StabilityDefaultAspect
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = StabilityBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &StabilityClient{
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		outputFormat: cfg.OutputFormat,
		aspectRatio:  cfg.AspectRatio,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		client:       client,
	}
}

// Name returns the provider identifier.
func (c *StabilityClient) Name() string { return StabilityName }

// CheckCredentials reports a missing API key.
func (c *StabilityClient) CheckCredentials() error {
	if c.apiKey == "" {
		return story.ConfigError(fmt.Errorf("%w: stability api key", story.ErrMissingCredential))
	}
	return nil
}

type stabilityErrorResponse struct {
	Name    string   `json:"name"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// Generate posts the prompt and returns the image bytes.
func (c *StabilityClient) Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"prompt":        req.Prompt,
		"output_format": c.outputFormat,
		"aspect_ratio":  c.aspectRatio,
	}
	for _, key := range []string{"prompt", "output_format", "aspect_ratio"} {
		if err := mw.WriteField(key, fields[key]); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+stabilityGeneratePrefix+c.model, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "image/*")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp stabilityErrorResponse
		errMsg := strings.TrimSpace(string(respBody))
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			switch {
			case len(errResp.Errors) > 0:
				errMsg = strings.Join(errResp.Errors, "; ")
			case errResp.Message != "":
				errMsg = errResp.Message
			}
		}
		return nil, statusErrorFrom(c.Name(), resp, errMsg)
	}

	mediaType := "image/" + c.outputFormat
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = mt
		}
	}
	if len(respBody) == 0 || !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: stability returned %q with %d bytes", story.ErrMalformedResponse, mediaType, len(respBody))
	}

	return &ImageResult{Data: respBody, MIMEType: mediaType, Provider: c.Name()}, nil
}

var _ ImageProvider = (*StabilityClient)(nil)
