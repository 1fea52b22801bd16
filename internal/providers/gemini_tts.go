package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackzampolin/cuentos/internal/story"
	"github.com/jackzampolin/cuentos/internal/wav"
)

const (
	GeminiTTSName         = "gemini-tts"
	GeminiTTSBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	GeminiTTSDefaultModel = "gemini-2.5-flash-preview-tts"
	GeminiTTSDefaultVoice = "kore"

	geminiNarrationPrefix = "Narra el siguiente texto: "
)

// GeminiTTSConfig holds configuration for the Gemini speech client.
type GeminiTTSConfig struct {
	APIKey     string
	Model      string
	Voice      string // prebuilt voice name (default: kore)
	BaseURL    string // Optional (tests)
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeminiTTSClient implements Narrator against the generateContent REST endpoint.
// The response carries base64 s16le PCM at 24 kHz.
type GeminiTTSClient struct {
	apiKey  string
	model   string
	voice   string
	baseURL string
	client  *http.Client
}

// NewGeminiTTSClient creates a new Gemini TTS client.
func NewGeminiTTSClient(cfg GeminiTTSConfig) *GeminiTTSClient {
	if cfg.Model == "" {
		cfg.Model = GeminiTTSDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = GeminiTTSDefaultVoice
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiTTSBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &GeminiTTSClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		voice:   cfg.Voice,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// Name returns the provider identifier.
func (c *GeminiTTSClient) Name() string { return GeminiTTSName }

// Voice returns the configured voice.
func (c *GeminiTTSClient) Voice() string { return c.voice }

// CheckCredentials reports a missing API key.
func (c *GeminiTTSClient) CheckCredentials() error {
	if c.apiKey == "" {
		return story.ConfigError(fmt.Errorf("%w: google api key", story.ErrMissingCredential))
	}
	return nil
}

type geminiTTSRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	Model            string                 `json:"model"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type geminiTTSResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Narrate synthesizes text and returns raw PCM.
func (c *GeminiTTSClient) Narrate(ctx context.Context, req *NarrationRequest) (*NarrationResult, error) {
	start := time.Now()
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	pcmB64, err := c.doRequest(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	pcm, err := base64.StdEncoding.DecodeString(pcmB64)
	if err != nil {
		return nil, fmt.Errorf("%w: audio payload is not base64: %v", story.ErrMalformedResponse, err)
	}

	return &NarrationResult{
		Audio:         pcm,
		Format:        FormatPCM,
		SampleRate:    wav.SampleRate,
		Provider:      c.Name(),
		CharCount:     len(req.Text),
		ExecutionTime: time.Since(start),
	}, nil
}

// doRequest returns the base64 audio payload from the response.
func (c *GeminiTTSClient) doRequest(ctx context.Context, text string) (string, error) {
	body := geminiTTSRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: geminiNarrationPrefix + text}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		Model: c.model,
	}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = c.voice

	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp geminiErrorResponse
		errMsg := strings.TrimSpace(string(respBody))
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			errMsg = errResp.Error.Message
		}
		return "", statusErrorFrom(c.Name(), resp, errMsg)
	}

	var ttsResp geminiTTSResponse
	if err := json.Unmarshal(respBody, &ttsResp); err != nil {
		return "", fmt.Errorf("%w: %v", story.ErrMalformedResponse, err)
	}
	if len(ttsResp.Candidates) == 0 || len(ttsResp.Candidates[0].Content.Parts) == 0 ||
		ttsResp.Candidates[0].Content.Parts[0].InlineData == nil ||
		ttsResp.Candidates[0].Content.Parts[0].InlineData.Data == "" {
		return "", fmt.Errorf("%w: no inline audio in response", story.ErrMalformedResponse)
	}
	return ttsResp.Candidates[0].Content.Parts[0].InlineData.Data, nil
}

var _ Narrator = (*GeminiTTSClient)(nil)
