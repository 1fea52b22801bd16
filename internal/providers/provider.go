package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TextClient generates free-form or JSON text from a prompt.
type TextClient interface {
	Name() string
	Generate(ctx context.Context, req *TextRequest) (*TextResult, error)
}

// ImageProvider turns an image prompt into a displayable image.
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, req *ImageRequest) (*ImageResult, error)
}

// Narrator synthesizes narration audio for a page of text.
type Narrator interface {
	Name() string
	Narrate(ctx context.Context, req *NarrationRequest) (*NarrationResult, error)
}

// CredentialChecker is implemented by clients that need an API key.
// CheckCredentials makes no network call.
type CredentialChecker interface {
	CheckCredentials() error
}

// CheckCredentials returns the configuration error of client, or nil when it
// has none or needs no credential.
func CheckCredentials(client any) error {
	if c, ok := client.(CredentialChecker); ok {
		return c.CheckCredentials()
	}
	return nil
}

// TextRequest is a single-prompt generation request.
type TextRequest struct {
	Prompt string
	// JSON asks the provider for a JSON response when it supports a response MIME type.
	JSON        bool
	Temperature float64
}

// TextResult is the generated text plus bookkeeping.
type TextResult struct {
	Text          string
	Provider      string
	Model         string
	ExecutionTime time.Duration
}

// ImageRequest is a single-image generation request.
type ImageRequest struct {
	Prompt string
}

// ImageResult is either inline image bytes or a URL when the provider does not
// return bytes (placeholders).
type ImageResult struct {
	Data     []byte
	MIMEType string
	URL      string
	Provider string
}

// Reference returns a self-contained data URI for inline bytes, or the URL.
func (r *ImageResult) Reference() string {
	if len(r.Data) == 0 {
		return r.URL
	}
	mime := r.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// NarrationRequest is the text to narrate.
type NarrationRequest struct {
	Text string
}

// Audio formats a Narrator can return.
const (
	FormatPCM = "pcm" // s16le mono 24 kHz, no container
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

// NarrationResult is synthesized audio.
type NarrationResult struct {
	Audio         []byte
	Format        string
	SampleRate    int
	Provider      string
	CharCount     int
	ExecutionTime time.Duration
}

// IsPCM reports whether Audio is raw PCM that can be kept for WAV export.
func (r *NarrationResult) IsPCM() bool { return r.Format == FormatPCM }

// MIMEType returns the audio media type for container formats.
func (r *NarrationResult) MIMEType() string {
	switch r.Format {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// RateLimitError is returned when a provider answers 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// StatusError is a non-success HTTP response carrying the provider's message.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether err is a transient upstream failure.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// RetryAfter returns the server-suggested delay for rate limit errors.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// statusErrorFrom builds the error for a non-2xx response.
func statusErrorFrom(provider string, resp *http.Response, msg string) error {
	if msg == "" {
		msg = fmt.Sprintf("server responded with %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    fmt.Sprintf("%s rate limited: %s", provider, msg),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			StatusCode: resp.StatusCode,
		}
	}
	return &StatusError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
}
