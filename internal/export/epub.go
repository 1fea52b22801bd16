package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackzampolin/cuentos/internal/epub"
	"github.com/jackzampolin/cuentos/internal/story"
	"github.com/jackzampolin/cuentos/internal/wav"
)

// DefaultAuthor is the dc:creator of exported books.
const DefaultAuthor = "Cuentos Mágicos AI"

// EPUBOptions configures EPUB synthesis.
type EPUBOptions struct {
	// Narrated embeds each page's WAV with a SMIL media overlay.
	Narrated bool
	Author   string
	Narrator string
	Now      func() time.Time
}

// EPUB builds an EPUB 3 package for s. Every image reference is resolved
// to bytes; the first page image becomes the cover.
func EPUB(ctx context.Context, s *story.Story, r *Resolver, opts EPUBOptions) ([]byte, error) {
	if s == nil || len(s.Pages) == 0 {
		return nil, story.ExportError(fmt.Errorf("story has no pages"))
	}
	if opts.Narrated {
		if err := requirePCM(s); err != nil {
			return nil, err
		}
	}

	pages := make([]epub.Page, len(s.Pages))
	for i, p := range s.Pages {
		ep := epub.Page{Number: i + 1, Text: p.Text}
		if p.ImageURL != "" {
			res, err := r.Resolve(ctx, p.ImageURL)
			if err != nil {
				return nil, story.ExportError(fmt.Errorf("page %d image: %w", i+1, err))
			}
			ep.Image = &epub.Image{Data: res.Data, MediaType: res.MediaType}
		}
		if opts.Narrated {
			audio, err := wav.EncodeBase64(p.PCMData)
			if err != nil {
				return nil, story.ExportError(fmt.Errorf("page %d audio: %w", i+1, err))
			}
			ep.Audio = audio
			ep.DurationMS = wav.Duration(len(audio) - wav.HeaderSize)
		}
		pages[i] = ep
	}

	book := epub.Book{
		Title:    s.Title,
		Author:   opts.Author,
		Language: "es",
		Narrator: opts.Narrator,
	}
	if book.Author == "" {
		book.Author = DefaultAuthor
	}
	if opts.Now != nil {
		book.CreatedAt = opts.Now()
	}

	b, err := epub.NewBuilder(book, pages)
	if err != nil {
		if errors.Is(err, epub.ErrNoCover) {
			return nil, story.ExportError(story.ErrNoCover)
		}
		return nil, story.ExportError(err)
	}
	buf, err := b.BuildToBuffer()
	if err != nil {
		return nil, story.ExportError(fmt.Errorf("failed to build epub: %w", err))
	}
	return buf.Bytes(), nil
}

func requirePCM(s *story.Story) error {
	for _, p := range s.Pages {
		if p.PCMData != "" {
			continue
		}
		if p.AudioURL != "" {
			return story.ExportError(fmt.Errorf("narrated epub: %w", story.ErrAudiobookUnsupported))
		}
		return story.ExportError(story.ErrNoAudio)
	}
	return nil
}
