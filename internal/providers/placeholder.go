package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	PlaceholderName = "placeholder"

	placeholderWidth     = 800
	placeholderHeight    = 600
	placeholderBG        = "F7F3E9"
	placeholderColor     = "A0AEC0"
	placeholderErrColor  = "DC2626"
	placeholderLabel     = "Ilustración de ejemplo"
	placeholderErrLabel  = "Error al crear la ilustración"
	placeholderHostFront = "https://placehold.co"
)

// PlaceholderURL returns the deterministic sample or error illustration URL.
func PlaceholderURL(isError bool) string {
	color, label := placeholderColor, placeholderLabel
	if isError {
		color, label = placeholderErrColor, placeholderErrLabel
	}
	return fmt.Sprintf("%s/%dx%d/%s/%s?text=%s&font=chewy",
		placeholderHostFront, placeholderWidth, placeholderHeight, placeholderBG, color, encodeURIComponent(label))
}

// IsPlaceholder reports whether ref points at a placeholder illustration.
func IsPlaceholder(ref string) bool {
	return strings.HasPrefix(ref, placeholderHostFront+"/")
}

// encodeURIComponent escapes like the browser function: spaces become %20.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// PlaceholderProvider returns the sample illustration without any network call.
type PlaceholderProvider struct{}

// Name returns the provider identifier.
func (PlaceholderProvider) Name() string { return PlaceholderName }

// Generate returns the sample placeholder for any prompt.
func (PlaceholderProvider) Generate(_ context.Context, _ *ImageRequest) (*ImageResult, error) {
	return &ImageResult{URL: PlaceholderURL(false), Provider: PlaceholderName}, nil
}

var _ ImageProvider = PlaceholderProvider{}
