package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/cuentos/internal/prompts/pages"
	"github.com/jackzampolin/cuentos/internal/story"
)

func TestPlaceholderURL(t *testing.T) {
	want := "https://placehold.co/800x600/F7F3E9/A0AEC0?text=Ilustraci%C3%B3n%20de%20ejemplo&font=chewy"
	if got := PlaceholderURL(false); got != want {
		t.Fatalf("PlaceholderURL(false) = %q, want %q", got, want)
	}
	errURL := PlaceholderURL(true)
	if !strings.Contains(errURL, "/DC2626?") || !strings.Contains(errURL, "Error%20al%20crear%20la%20ilustraci%C3%B3n") {
		t.Fatalf("unexpected error placeholder %q", errURL)
	}
	if !IsPlaceholder(errURL) || IsPlaceholder("data:image/jpeg;base64,AA==") {
		t.Fatal("IsPlaceholder misclassified")
	}
}

func TestPlaceholderProviderIgnoresPrompt(t *testing.T) {
	for _, prompt := range []string{"", "a fox", strings.Repeat("x", 5000)} {
		img, err := PlaceholderProvider{}.Generate(context.Background(), &ImageRequest{Prompt: prompt})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if img.Reference() != PlaceholderURL(false) {
			t.Fatalf("unexpected reference %q", img.Reference())
		}
	}
}

func TestParseStructuredJSONFences(t *testing.T) {
	plain := `[{"text":"Había una vez","imagePrompt":"a fox"}]`
	inputs := map[string]string{
		"plain":         plain,
		"json fence":    "```json\n" + plain + "\n```",
		"bare fence":    "```\n" + plain + "\n```",
		"surrounded":    "Aquí está el cuento:\n" + plain + "\n¡Disfruta!",
		"padded fence":  "\n\n```json\n  " + plain + "  \n```\n",
		"one-line fence": "```json " + plain + " ```",
	}

	want, err := ParseStructuredJSON(plain)
	if err != nil {
		t.Fatalf("ParseStructuredJSON(plain) error = %v", err)
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := ParseStructuredJSON(in)
			if err != nil {
				t.Fatalf("ParseStructuredJSON() error = %v", err)
			}
			if string(got) != string(want) {
				t.Fatalf("got %s, want %s", got, want)
			}
		})
	}

	if _, err := ParseStructuredJSON("no json here"); err == nil {
		t.Fatal("expected error for non-JSON content")
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	valid := json.RawMessage(`[{"text":"a","imagePrompt":"b"}]`)
	if err := ValidateStructuredJSON(pages.Schema, valid); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	for name, doc := range map[string]string{
		"object":        `{"text":"a","imagePrompt":"b"}`,
		"empty array":   `[]`,
		"missing field": `[{"text":"a"}]`,
		"wrong type":    `[{"text":1,"imagePrompt":"b"}]`,
	} {
		if err := ValidateStructuredJSON(pages.Schema, json.RawMessage(doc)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRegistryFromConfig(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{
		Text: map[string]ProviderConfig{
			"gemini": {Type: "gemini", Enabled: true},
			"off":    {Type: "openai", Enabled: false},
		},
		Image: map[string]ProviderConfig{
			"stability": {Type: "stability", APIKey: "k", Enabled: true},
			"bogus":     {Type: "nope", Enabled: true},
		},
		Narration: map[string]ProviderConfig{
			"gemini-tts": {Type: "gemini", APIKey: "k", Enabled: true},
		},
	}, nil)

	if _, err := r.Text("gemini"); err != nil {
		t.Fatalf("expected gemini text client: %v", err)
	}
	if _, err := r.Text("off"); err == nil {
		t.Fatal("disabled provider should not be registered")
	}
	if _, err := r.Image("bogus"); err == nil {
		t.Fatal("unknown type should not be registered")
	}
	if _, err := r.Image(PlaceholderName); err != nil {
		t.Fatal("placeholder must always be available")
	}

	r.Reload(RegistryConfig{
		Image: map[string]ProviderConfig{"stability": {Type: "stability", APIKey: "k", Enabled: true}},
	})
	if _, err := r.Text("gemini"); err == nil {
		t.Fatal("expected gemini to be unregistered after reload")
	}
	if _, err := r.Narrator("gemini-tts"); err == nil {
		t.Fatal("expected narrator to be unregistered after reload")
	}
	if _, err := r.Image("stability"); err != nil {
		t.Fatal("unchanged provider should remain")
	}
}

func TestGeminiTextMissingKey(t *testing.T) {
	c := NewGeminiTextClient(GeminiConfig{})
	_, err := c.Generate(context.Background(), &TextRequest{Prompt: "hola"})
	if err == nil || !strings.Contains(err.Error(), "missing credential") {
		t.Fatalf("expected missing credential, got %v", err)
	}
}

func TestCheckCredentials(t *testing.T) {
	missing := []struct {
		name   string
		client any
	}{
		{"gemini text", NewGeminiTextClient(GeminiConfig{})},
		{"imagen", NewImagenClient(GeminiConfig{})},
		{"gemini tts", NewGeminiTTSClient(GeminiTTSConfig{})},
		{"openai text", NewOpenAITextClient(OpenAIConfig{})},
		{"openai image", NewOpenAIImageClient(OpenAIConfig{})},
		{"openai tts", NewOpenAITTSClient(OpenAITTSConfig{})},
		{"anthropic", NewAnthropicClient(AnthropicConfig{})},
		{"stability", NewStabilityClient(StabilityConfig{})},
	}
	for _, tt := range missing {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCredentials(tt.client)
			if !errors.Is(err, story.ErrMissingCredential) || story.KindOf(err) != story.KindConfig {
				t.Fatalf("CheckCredentials() = %v, want missing credential config error", err)
			}
		})
	}

	t.Run("keyed client", func(t *testing.T) {
		if err := CheckCredentials(NewStabilityClient(StabilityConfig{APIKey: "sk-test"})); err != nil {
			t.Fatalf("CheckCredentials() = %v", err)
		}
	})
	t.Run("keyless providers", func(t *testing.T) {
		for _, c := range []any{PlaceholderProvider{}, NewMockTextClient(""), &MockNarrator{}} {
			if err := CheckCredentials(c); err != nil {
				t.Fatalf("CheckCredentials(%T) = %v", c, err)
			}
		}
	})
}
