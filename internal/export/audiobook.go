package export

import (
	"fmt"

	"github.com/jackzampolin/cuentos/internal/story"
	"github.com/jackzampolin/cuentos/internal/wav"
)

// Audiobook concatenates every page's PCM in page order into one WAV file.
// Pages without PCM are skipped. Narration held only as compressed audio
// cannot be joined and yields ErrAudiobookUnsupported.
func Audiobook(s *story.Story) ([]byte, error) {
	if s == nil {
		return nil, story.ExportError(story.ErrNoAudio)
	}
	var segments []string
	compressed := false
	for _, p := range s.Pages {
		switch {
		case p.PCMData != "":
			segments = append(segments, p.PCMData)
		case p.AudioURL != "":
			compressed = true
		}
	}
	if len(segments) == 0 {
		if compressed {
			return nil, story.ExportError(story.ErrAudiobookUnsupported)
		}
		return nil, story.ExportError(story.ErrNoAudio)
	}

	pcm, err := wav.Concat(segments)
	if err != nil {
		return nil, story.ExportError(fmt.Errorf("failed to join narration: %w", err))
	}
	if len(pcm) == 0 {
		return nil, story.ExportError(story.ErrNoAudio)
	}
	return wav.Encode(pcm), nil
}
