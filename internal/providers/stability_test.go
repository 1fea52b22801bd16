package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackzampolin/cuentos/internal/story"
)

func TestStabilityGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2beta/stable-image/generate/core" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "image/*" {
			t.Fatalf("expected Accept image/*, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("prompt"); got != "a fox" {
			t.Fatalf("unexpected prompt %q", got)
		}
		if got := r.FormValue("output_format"); got != "jpeg" {
			t.Fatalf("unexpected output_format %q", got)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer server.Close()

	client := NewStabilityClient(StabilityConfig{APIKey: "sk-test", BaseURL: server.URL})
	img, err := client.Generate(context.Background(), &ImageRequest{Prompt: "a fox"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if img.MIMEType != "image/jpeg" || len(img.Data) != 3 {
		t.Fatalf("unexpected image: %+v", img)
	}
	if !strings.HasPrefix(img.Reference(), "data:image/jpeg;base64,") {
		t.Fatalf("unexpected reference %q", img.Reference())
	}
}

func TestStabilityGenerateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"id":"x","name":"content_moderation","errors":["prompt flagged"]}`))
	}))
	defer server.Close()

	client := NewStabilityClient(StabilityConfig{APIKey: "sk-test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), &ImageRequest{Prompt: "a fox"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if se.Message != "prompt flagged" || se.Provider != StabilityName {
		t.Fatalf("unexpected error: %+v", se)
	}
	if IsRetryable(err) {
		t.Fatal("4xx errors should not be retried")
	}
}

func TestStabilityRejectsNonImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewStabilityClient(StabilityConfig{APIKey: "sk-test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), &ImageRequest{Prompt: "a fox"})
	if !errors.Is(err, story.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestStabilityMissingKey(t *testing.T) {
	client := NewStabilityClient(StabilityConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Generate(context.Background(), &ImageRequest{Prompt: "a fox"})
	if story.KindOf(err) != story.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}
