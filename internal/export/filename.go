package export

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// defaultBase names exports whose story has no title.
const defaultBase = "cuento"

// Basename derives a file base name from a story title: runs of
// whitespace become a single underscore.
func Basename(title string) string {
	base := whitespace.ReplaceAllString(strings.TrimSpace(title), "_")
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, base)
	if base == "" {
		return defaultBase
	}
	return base
}

// Filename returns the download name for a story title and format.
func Filename(title string, f Format) string {
	switch f {
	case FormatHTML:
		return Basename(title) + ".html"
	case FormatEPUB:
		return Basename(title) + ".epub"
	case FormatNarratedEPUB:
		return Basename(title) + "_narrado.epub"
	case FormatAudiobook:
		return Basename(title) + "_audiolibro.wav"
	default:
		return Basename(title) + "." + string(f)
	}
}
