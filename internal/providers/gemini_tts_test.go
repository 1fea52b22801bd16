package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jackzampolin/cuentos/internal/story"
)

func TestGeminiTTSNarrateSuccess(t *testing.T) {
	pcm := []byte{0x10, 0x00, 0x20, 0x00}
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash-preview-tts:generateContent" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Fatalf("expected api key in query, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"` +
			base64.StdEncoding.EncodeToString(pcm) + `"}}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiTTSClient(GeminiTTSConfig{APIKey: "test-key", BaseURL: server.URL})
	result, err := client.Narrate(context.Background(), &NarrationRequest{Text: "Había una vez"})
	if err != nil {
		t.Fatalf("Narrate() error = %v", err)
	}
	if string(result.Audio) != string(pcm) || !result.IsPCM() {
		t.Fatalf("unexpected result: %+v", result)
	}

	contents := payload["contents"].([]any)
	part := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)
	if part["text"] != "Narra el siguiente texto: Había una vez" {
		t.Fatalf("unexpected prompt text: %v", part["text"])
	}
	gen := payload["generationConfig"].(map[string]any)
	if mods := gen["responseModalities"].([]any); len(mods) != 1 || mods[0] != "AUDIO" {
		t.Fatalf("unexpected modalities: %v", mods)
	}
	voice := gen["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
	if voice["voiceName"] != "kore" {
		t.Fatalf("unexpected voice: %v", voice["voiceName"])
	}
}

func TestGeminiTTSNarrateErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		malformed   bool
	}{
		{
			name:        "structured error message",
			status:      http.StatusBadRequest,
			body:        `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			wantMessage: "API key not valid",
		},
		{
			name:        "raw body fallback",
			status:      http.StatusBadGateway,
			body:        "upstream unavailable",
			wantMessage: "upstream unavailable",
		},
		{
			name:      "missing audio payload",
			status:    http.StatusOK,
			body:      `{"candidates":[{"content":{"parts":[{"text":"no audio"}]}}]}`,
			malformed: true,
		},
		{
			name:      "non json success",
			status:    http.StatusOK,
			body:      "<html>",
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewGeminiTTSClient(GeminiTTSConfig{APIKey: "k", BaseURL: server.URL})
			_, err := client.Narrate(context.Background(), &NarrationRequest{Text: "Hola"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.malformed {
				if !errors.Is(err, story.ErrMalformedResponse) {
					t.Fatalf("expected malformed response error, got %v", err)
				}
				return
			}
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %T: %v", err, err)
			}
			if se.StatusCode != tt.status || !strings.Contains(se.Message, tt.wantMessage) {
				t.Fatalf("unexpected error: %+v", se)
			}
		})
	}
}

func TestGeminiTTSMissingKeyMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewGeminiTTSClient(GeminiTTSConfig{BaseURL: server.URL})
	_, err := client.Narrate(context.Background(), &NarrationRequest{Text: "Hola"})
	if !errors.Is(err, story.ErrMissingCredential) || story.KindOf(err) != story.KindConfig {
		t.Fatalf("expected missing credential config error, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request, got %d", hits.Load())
	}
}

func TestGeminiTTSRateLimitIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Resource exhausted"}}`))
	}))
	defer server.Close()

	client := NewGeminiTTSClient(GeminiTTSConfig{APIKey: "k", BaseURL: server.URL})
	_, err := client.Narrate(context.Background(), &NarrationRequest{Text: "Hola"})
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if RetryAfter(err).Seconds() != 2 {
		t.Fatalf("expected 2s retry-after, got %v", RetryAfter(err))
	}
}

func TestGeminiTTSLive(t *testing.T) {
	client := LoadTestConfig().NewGeminiTTSClient()
	if client == nil {
		t.Skip("GOOGLE_API_KEY not set")
	}
	result, err := client.Narrate(context.Background(), &NarrationRequest{Text: "Hola, amigos."})
	if err != nil {
		t.Fatalf("Narrate() error = %v", err)
	}
	if len(result.Audio) == 0 {
		t.Fatal("expected audio")
	}
}
