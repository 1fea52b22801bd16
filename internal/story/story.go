// Package story holds the domain model for a generated children's story:
// pages, the story aggregate, generation requests and the error taxonomy shared
// by the pipeline, providers and exporters.
package story

import (
	"fmt"
	"strings"
)

// AgeRange selects the target audience of a story.
type AgeRange string

const (
	AgeEarly  AgeRange = "early"
	AgeMiddle AgeRange = "middle"
	AgeLate   AgeRange = "late"
)

var ageLabels = map[AgeRange]string{
	AgeEarly:  "3 a 5 años",
	AgeMiddle: "6 a 8 años",
	AgeLate:   "9 a 11 años",
}

// Label returns the Spanish label used in prompts.
func (a AgeRange) Label() string {
	return ageLabels[a]
}

// Valid reports whether a is one of the known ranges.
func (a AgeRange) Valid() bool {
	_, ok := ageLabels[a]
	return ok
}

// ParseAgeRange accepts either the short key or the Spanish label.
func ParseAgeRange(s string) (AgeRange, error) {
	s = strings.TrimSpace(s)
	if a := AgeRange(strings.ToLower(s)); a.Valid() {
		return a, nil
	}
	for a, label := range ageLabels {
		if label == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown age range %q (want early, middle or late)", s)
}

// ImageQuality chooses between generated illustrations and placeholders.
type ImageQuality string

const (
	QualityHigh        ImageQuality = "high"
	QualityPlaceholder ImageQuality = "placeholder"
)

const (
	MinPages = 2
	MaxPages = 24
)

// Page is one illustrated, narrated unit of a story.
// ID, Text and ImagePrompt are fixed at creation. Media fields are filled
// in by the pipeline.
type Page struct {
	ID          int    `json:"id"`
	Text        string `json:"text"`
	ImagePrompt string `json:"imagePrompt"`
	ImageURL    string `json:"imageUrl,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
	// PCMData is base64 s16le mono 24 kHz audio. Only set when the narrator
	// returns raw PCM.
	PCMData string `json:"pcmData,omitempty"`
}

// HasImage reports whether an image resource is populated.
func (p Page) HasImage() bool { return p.ImageURL != "" }

// HasAudio reports whether any narration representation is populated.
func (p Page) HasAudio() bool { return p.AudioURL != "" || p.PCMData != "" }

// Story is an ordered set of pages and a title.
type Story struct {
	Title string `json:"title"`
	Pages []Page `json:"pages"`
}

// Ready reports whether every page has both an image and audio.
// An empty story is never ready.
func (s *Story) Ready() bool {
	if s == nil || len(s.Pages) == 0 {
		return false
	}
	for _, p := range s.Pages {
		if !p.HasImage() || !p.HasAudio() {
			return false
		}
	}
	return true
}

// HasPCM reports whether every page carries raw PCM narration.
func (s *Story) HasPCM() bool {
	if s == nil || len(s.Pages) == 0 {
		return false
	}
	for _, p := range s.Pages {
		if p.PCMData == "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand to observers.
func (s *Story) Clone() *Story {
	if s == nil {
		return nil
	}
	out := &Story{Title: s.Title}
	if s.Pages != nil {
		out.Pages = make([]Page, len(s.Pages))
		copy(out.Pages, s.Pages)
	}
	return out
}

// LoadingState is the busy indicator shown while a remote call is in flight.
type LoadingState struct {
	IsLoading bool   `json:"isLoading"`
	Message   string `json:"message"`
}

// Request describes a story to generate.
type Request struct {
	Idea     string       `json:"idea"`
	AgeRange AgeRange     `json:"age_range"`
	NumPages int          `json:"num_pages"`
	Quality  ImageQuality `json:"image_quality"`
}

// HighQuality reports whether generated illustrations were requested.
func (r Request) HighQuality() bool { return r.Quality == QualityHigh }

// Validate checks the request before any remote call is made.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Idea) == "" {
		return ValidationError(ErrEmptyIdea)
	}
	if r.NumPages < MinPages || r.NumPages > MaxPages || r.NumPages%2 != 0 {
		return ValidationError(fmt.Errorf("%w: got %d", ErrPageCount, r.NumPages))
	}
	if !r.AgeRange.Valid() {
		return ValidationError(fmt.Errorf("%w: %q", ErrAgeRange, r.AgeRange))
	}
	switch r.Quality {
	case QualityHigh, QualityPlaceholder:
	default:
		return ValidationError(fmt.Errorf("%w: %q", ErrImageQuality, r.Quality))
	}
	return nil
}
