package providers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"

	"github.com/jackzampolin/cuentos/internal/wav"
)

const (
	OpenAITTSName         = "openai-tts"
	openAITTSDefaultModel = "gpt-4o-mini-tts"
	openAITTSDefaultVoice = "coral"
	openAITTSInstructions = "Narra con voz cálida y pausada, como quien lee un cuento infantil en voz alta."
)

// OpenAITTSConfig holds configuration for the OpenAI TTS client.
type OpenAITTSConfig struct {
	OpenAIConfig
	Voice        string  // "coral" (default)
	Format       string  // "pcm" (default) keeps raw audio for WAV export; "mp3" is playback only
	Speed        float64 // 0.25-4.0
	Instructions string  // Used by gpt-4o-mini-tts
}

// OpenAITTSClient implements Narrator using the official OpenAI SDK.
// OpenAI's pcm format is s16le mono at 24 kHz, the same layout Gemini returns.
type OpenAITTSClient struct {
	apiKey       string
	model        string
	voice        string
	format       openai.AudioSpeechNewParamsResponseFormat
	speed        float64
	instructions string
	client       openai.Client
}

// NewOpenAITTSClient creates a new OpenAI TTS client.
func NewOpenAITTSClient(cfg OpenAITTSConfig) *OpenAITTSClient {
	if cfg.Model == "" {
		cfg.Model = openAITTSDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = openAITTSDefaultVoice
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.Instructions == "" {
		cfg.Instructions = openAITTSInstructions
	}

	return &OpenAITTSClient{
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		voice:        cfg.Voice,
		format:       normalizeOpenAIFormat(cfg.Format),
		speed:        cfg.Speed,
		instructions: cfg.Instructions,
		client:       newOpenAIClient(cfg.OpenAIConfig),
	}
}

// Name returns the provider identifier.
func (c *OpenAITTSClient) Name() string { return OpenAITTSName }

// CheckCredentials reports a missing API key.
func (c *OpenAITTSClient) CheckCredentials() error { return checkOpenAIKey(c.apiKey) }

// Narrate converts text to audio using the OpenAI speech endpoint.
func (c *OpenAITTSClient) Narrate(ctx context.Context, req *NarrationRequest) (*NarrationResult, error) {
	start := time.Now()
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}
	text := ""
	if req != nil {
		text = strings.TrimSpace(req.Text)
	}
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(c.model),
		Voice:          openai.AudioSpeechNewParamsVoice(c.voice),
		ResponseFormat: c.format,
		Speed:          openai.Float(c.speed),
	}
	if supportsInstructions(c.model) {
		params.Instructions = openai.String(c.instructions)
	}

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(c.Name(), err)
	}
	defer resp.Body.Close()

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading openai audio response: %w", err)
	}

	result := &NarrationResult{
		Audio:         audioBytes,
		Format:        openAIResultFormat(c.format),
		Provider:      c.Name(),
		CharCount:     len(text),
		ExecutionTime: time.Since(start),
	}
	if result.IsPCM() {
		result.SampleRate = wav.SampleRate
	}
	return result, nil
}

func supportsInstructions(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	return strings.HasPrefix(m, "gpt-4o-mini-tts")
}

func normalizeOpenAIFormat(format string) openai.AudioSpeechNewParamsResponseFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "pcm":
		return openai.AudioSpeechNewParamsResponseFormatPCM
	case "mp3":
		return openai.AudioSpeechNewParamsResponseFormatMP3
	case "opus":
		return openai.AudioSpeechNewParamsResponseFormatOpus
	case "aac":
		return openai.AudioSpeechNewParamsResponseFormatAAC
	case "flac":
		return openai.AudioSpeechNewParamsResponseFormatFLAC
	case "wav":
		return openai.AudioSpeechNewParamsResponseFormatWAV
	default:
		return openai.AudioSpeechNewParamsResponseFormatPCM
	}
}

func openAIResultFormat(format openai.AudioSpeechNewParamsResponseFormat) string {
	switch format {
	case openai.AudioSpeechNewParamsResponseFormatMP3:
		return FormatMP3
	case openai.AudioSpeechNewParamsResponseFormatOpus:
		return "opus"
	case openai.AudioSpeechNewParamsResponseFormatAAC:
		return "aac"
	case openai.AudioSpeechNewParamsResponseFormatFLAC:
		return "flac"
	case openai.AudioSpeechNewParamsResponseFormatWAV:
		return FormatWAV
	default:
		return FormatPCM
	}
}

var _ Narrator = (*OpenAITTSClient)(nil)
