package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/jackzampolin/cuentos/internal/prompts"
	"github.com/jackzampolin/cuentos/internal/prompts/character"
	"github.com/jackzampolin/cuentos/internal/prompts/idea"
	"github.com/jackzampolin/cuentos/internal/prompts/pages"
	"github.com/jackzampolin/cuentos/internal/prompts/title"
	"github.com/jackzampolin/cuentos/internal/providers"
	"github.com/jackzampolin/cuentos/internal/story"
	"github.com/jackzampolin/cuentos/internal/wav"
)

const (
	// DefaultIdea is suggested when the model returns no usable line.
	DefaultIdea = "Un dragón que tiene miedo a la oscuridad."
	// FallbackIdea is suggested when the idea request fails.
	FallbackIdea = "Un gatito que aprende a volar con globos."
)

// Strategy is one way of producing the pieces of a story. The orchestrator
// only sequences calls; a Strategy decides which services answer them.
type Strategy interface {
	Name() string
	SuggestIdea(ctx context.Context) string
	Title(ctx context.Context, idea string) (string, error)
	CharacterDescription(ctx context.Context, idea string) (string, error)
	// Story returns the page texts and image prompts without IDs.
	Story(ctx context.Context, req story.Request, characterDesc string) ([]story.Page, error)
	// Image returns a displayable reference for the prompt.
	Image(ctx context.Context, prompt string, highQuality bool) (string, error)
	Narration(ctx context.Context, text string) (Audio, error)
}

// Preflighter is implemented by strategies that can report configuration
// errors for a request before any network call.
type Preflighter interface {
	Preflight(req story.Request) error
}

// Audio is narration merged into a page.
// PCM is base64 raw PCM and is empty when the narrator returned a compressed format.
type Audio struct {
	URL string
	PCM string
}

// RegisterPrompts registers every embedded story prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	idea.RegisterPrompts(r)
	title.RegisterPrompts(r)
	character.RegisterPrompts(r)
	pages.RegisterPrompts(r)
}

// ProviderStrategy implements Strategy on top of provider clients.
type ProviderStrategy struct {
	name     string
	text     providers.TextClient
	image    providers.ImageProvider
	narrator providers.Narrator
	prompts  *prompts.Resolver
	logger   *slog.Logger
	pick     func(n int) int
}

// StrategyConfig names the clients a ProviderStrategy is built from.
type StrategyConfig struct {
	Name     string
	Text     providers.TextClient
	Image    providers.ImageProvider
	Narrator providers.Narrator
	Prompts  *prompts.Resolver
	Logger   *slog.Logger
}

// NewProviderStrategy creates a strategy. Every client is required; a missing
// one is a configuration error here rather than at call time.
func NewProviderStrategy(cfg StrategyConfig) (*ProviderStrategy, error) {
	switch {
	case cfg.Text == nil:
		return nil, story.ConfigError(fmt.Errorf("strategy %q: text provider is required", cfg.Name))
	case cfg.Image == nil:
		return nil, story.ConfigError(fmt.Errorf("strategy %q: image provider is required", cfg.Name))
	case cfg.Narrator == nil:
		return nil, story.ConfigError(fmt.Errorf("strategy %q: narration provider is required", cfg.Name))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := cfg.Prompts
	if resolver == nil {
		resolver = prompts.NewResolver(logger)
		RegisterPrompts(resolver)
	}
	return &ProviderStrategy{
		name:     cfg.Name,
		text:     cfg.Text,
		image:    cfg.Image,
		narrator: cfg.Narrator,
		prompts:  resolver,
		logger:   logger.With("strategy", cfg.Name),
		pick:     rand.IntN,
	}, nil
}

// StrategyFromRegistry looks up the named providers in reg.
func StrategyFromRegistry(reg *providers.Registry, name, text, image, narration string, resolver *prompts.Resolver, logger *slog.Logger) (*ProviderStrategy, error) {
	tc, err := reg.Text(text)
	if err != nil {
		return nil, story.ConfigError(fmt.Errorf("strategy %q: %w", name, err))
	}
	ip, err := reg.Image(image)
	if err != nil {
		return nil, story.ConfigError(fmt.Errorf("strategy %q: %w", name, err))
	}
	nr, err := reg.Narrator(narration)
	if err != nil {
		return nil, story.ConfigError(fmt.Errorf("strategy %q: %w", name, err))
	}
	return NewProviderStrategy(StrategyConfig{
		Name:     name,
		Text:     tc,
		Image:    ip,
		Narrator: nr,
		Prompts:  resolver,
		Logger:   logger,
	})
}

// Name returns the strategy name.
func (s *ProviderStrategy) Name() string { return s.name }

// Preflight checks the credentials of every client req will use. The image
// provider is skipped for placeholder requests.
func (s *ProviderStrategy) Preflight(req story.Request) error {
	checks := []any{s.text, s.narrator}
	if req.HighQuality() {
		checks = append(checks, s.image)
	}
	for _, c := range checks {
		if err := providers.CheckCredentials(c); err != nil {
			return fmt.Errorf("strategy %q: %w", s.name, err)
		}
	}
	return nil
}

// SuggestIdea asks for three ideas and picks one. It never fails.
func (s *ProviderStrategy) SuggestIdea(ctx context.Context) string {
	text, err := s.generate(ctx, idea.PromptKey, nil, false)
	if err != nil {
		s.logger.Warn("idea suggestion failed, using fallback", "error", err)
		return FallbackIdea
	}
	var ideas []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if line != "" {
			ideas = append(ideas, line)
		}
	}
	if len(ideas) == 0 {
		return DefaultIdea
	}
	return ideas[s.pick(len(ideas))]
}

// Title returns a cleaned short title.
func (s *ProviderStrategy) Title(ctx context.Context, ideaText string) (string, error) {
	raw, err := s.generate(ctx, title.PromptKey, title.Data{Idea: ideaText}, false)
	if err != nil {
		return "", err
	}
	t := story.CleanTitle(raw)
	if t == "" {
		return "", story.UpstreamError(s.text.Name(), fmt.Errorf("%w: empty title", story.ErrMalformedResponse))
	}
	return t, nil
}

// CharacterDescription returns the visual description of the main character.
func (s *ProviderStrategy) CharacterDescription(ctx context.Context, ideaText string) (string, error) {
	desc, err := s.generate(ctx, character.PromptKey, character.Data{Idea: ideaText}, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(desc), nil
}

// Story requests the structured page array and parses it.
func (s *ProviderStrategy) Story(ctx context.Context, req story.Request, characterDesc string) ([]story.Page, error) {
	raw, err := s.generate(ctx, pages.PromptKey, pages.Data{
		Idea:                 req.Idea,
		AgeRange:             req.AgeRange.Label(),
		NumPages:             req.NumPages,
		CharacterDescription: characterDesc,
	}, true)
	if err != nil {
		return nil, err
	}
	return ParsePages(raw)
}

// ParsePages decodes a page array from model output, unwrapping code fences.
func ParsePages(raw string) ([]story.Page, error) {
	parsed, err := providers.ParseStructuredJSON(raw)
	if err != nil {
		return nil, story.ParseError(fmt.Errorf("%w: %v", story.ErrInvalidStory, err))
	}
	if err := providers.ValidateStructuredJSON(pages.Schema, parsed); err != nil {
		return nil, story.ParseError(fmt.Errorf("%w: %v", story.ErrInvalidStory, err))
	}
	var out []story.Page
	if err := json.Unmarshal(parsed, &out); err != nil {
		return nil, story.ParseError(fmt.Errorf("%w: %v", story.ErrInvalidStory, err))
	}
	for i := range out {
		out[i].Text = strings.TrimSpace(out[i].Text)
		out[i].ImagePrompt = strings.TrimSpace(out[i].ImagePrompt)
	}
	return out, nil
}

// Image returns the sample placeholder when highQuality is off, without a
// network call. Otherwise it returns the generated image as a data URI.
func (s *ProviderStrategy) Image(ctx context.Context, prompt string, highQuality bool) (string, error) {
	if !highQuality {
		return providers.PlaceholderURL(false), nil
	}
	img, err := s.image.Generate(ctx, &providers.ImageRequest{Prompt: prompt})
	if err != nil {
		return "", upstream(s.image.Name(), err)
	}
	ref := img.Reference()
	if ref == "" {
		return "", story.UpstreamError(s.image.Name(), fmt.Errorf("%w: empty image", story.ErrMalformedResponse))
	}
	return ref, nil
}

// Narration synthesizes text. Raw PCM is kept and also wrapped as a WAV data URI.
func (s *ProviderStrategy) Narration(ctx context.Context, text string) (Audio, error) {
	res, err := s.narrator.Narrate(ctx, &providers.NarrationRequest{Text: text})
	if err != nil {
		return Audio{}, upstream(s.narrator.Name(), err)
	}
	if len(res.Audio) == 0 {
		return Audio{}, story.UpstreamError(s.narrator.Name(), fmt.Errorf("%w: empty audio", story.ErrMalformedResponse))
	}
	return audioFrom(res), nil
}

func audioFrom(res *providers.NarrationResult) Audio {
	switch {
	case res.IsPCM():
		return Audio{
			URL: dataURI("audio/wav", wav.Encode(res.Audio)),
			PCM: base64.StdEncoding.EncodeToString(res.Audio),
		}
	case res.Format == providers.FormatWAV:
		a := Audio{URL: dataURI("audio/wav", res.Audio)}
		if pcm, err := wav.Data(res.Audio); err == nil {
			a.PCM = base64.StdEncoding.EncodeToString(pcm)
		}
		return a
	default:
		return Audio{URL: dataURI(res.MIMEType(), res.Audio)}
	}
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (s *ProviderStrategy) generate(ctx context.Context, key string, data any, asJSON bool) (string, error) {
	prompt, err := s.prompts.Render(key, data)
	if err != nil {
		return "", story.ConfigError(err)
	}
	s.logger.Debug("text request", "prompt", key, "provider", s.text.Name())
	res, err := s.text.Generate(ctx, &providers.TextRequest{Prompt: prompt, JSON: asJSON})
	if err != nil {
		return "", upstream(s.text.Name(), err)
	}
	return res.Text, nil
}

// upstream attributes err to provider unless it is already classified or a
// context error.
func upstream(provider string, err error) error {
	if err == nil || story.KindOf(err) != "" ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return story.UpstreamError(provider, err)
}

var (
	_ Strategy    = (*ProviderStrategy)(nil)
	_ Preflighter = (*ProviderStrategy)(nil)
)
