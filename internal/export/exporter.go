// Package export turns a finished story into downloadable artifacts (an HTML
// storybook, EPUB packages and a WAV audiobook) and hands them to a Sink.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/cuentos/internal/story"
)

// Format names an export type.
type Format string

const (
	FormatHTML         Format = "html"
	FormatEPUB         Format = "epub"
	FormatNarratedEPUB Format = "narrated-epub"
	FormatAudiobook    Format = "wav"
)

// Formats lists every supported format.
var Formats = []Format{FormatHTML, FormatEPUB, FormatNarratedEPUB, FormatAudiobook}

// ContentType returns the media type of artifacts in format f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatEPUB, FormatNarratedEPUB:
		return "application/epub+zip"
	case FormatAudiobook:
		return "audio/wav"
	}
	return "application/octet-stream"
}

// ParseFormat accepts a format name, case-insensitively. "audiobook" is an
// alias for wav.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "audiobook" {
		return FormatAudiobook, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ParseFormats parses a comma-separated format list.
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no export format given")
	}
	return out, nil
}

// Exporter synthesizes artifacts from ready stories.
type Exporter struct {
	resolver  *Resolver
	audioMode AudioMode
	author    string
	narrator  string
	logger    *slog.Logger
	now       func() time.Time
}

// Config configures an Exporter.
type Config struct {
	Resolver  *Resolver
	AudioMode AudioMode
	Author    string
	Narrator  string
	Logger    *slog.Logger
}

// New creates an Exporter.
func New(cfg Config) *Exporter {
	e := &Exporter{
		resolver:  cfg.Resolver,
		audioMode: cfg.AudioMode,
		author:    cfg.Author,
		narrator:  cfg.Narrator,
		logger:    cfg.Logger,
		now:       time.Now,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.resolver == nil {
		e.resolver = NewResolver(ResolverConfig{Logger: e.logger})
	}
	return e
}

// WithAudioMode returns a copy of e that embeds HTML narration using mode.
func (e *Exporter) WithAudioMode(mode AudioMode) *Exporter {
	cp := *e
	cp.audioMode = mode
	return &cp
}

// Export builds one artifact. The story must be ready: every page holds
// both an image and narration.
func (e *Exporter) Export(ctx context.Context, s *story.Story, f Format) (Artifact, error) {
	if !s.Ready() {
		return Artifact{}, story.ExportError(story.ErrNotReady)
	}

	var (
		data []byte
		err  error
	)
	switch f {
	case FormatHTML:
		data, err = HTML(s, e.audioMode)
	case FormatEPUB, FormatNarratedEPUB:
		data, err = EPUB(ctx, s, e.resolver, EPUBOptions{
			Narrated: f == FormatNarratedEPUB,
			Author:   e.author,
			Narrator: e.narrator,
			Now:      e.now,
		})
	case FormatAudiobook:
		data, err = Audiobook(s)
	default:
		return Artifact{}, story.ExportError(fmt.Errorf("unknown export format %q", f))
	}
	if err != nil {
		return Artifact{}, err
	}

	a := Artifact{Name: Filename(s.Title, f), ContentType: f.ContentType(), Data: data}
	e.logger.Info("exported story", "format", f, "name", a.Name, "bytes", len(data))
	return a, nil
}

// Deliver exports s in every format and delivers each artifact to sink.
// It stops at the first failure.
func (e *Exporter) Deliver(ctx context.Context, s *story.Story, formats []Format, sink Sink) ([]Artifact, error) {
	out := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		a, err := e.Export(ctx, s, f)
		if err != nil {
			return out, fmt.Errorf("%s export: %w", f, err)
		}
		if err := sink.Deliver(ctx, a); err != nil {
			return out, fmt.Errorf("failed to deliver %s: %w", a.Name, err)
		}
		out = append(out, a)
	}
	return out, nil
}
