package story

import (
	"strings"
	"unicode/utf8"
)

var titlePrefixes = []string{"título:", "titulo:", "title:"}

const titleQuotes = "\"'“”«»‘’"

// CleanTitle strips a leading label and surrounding quotes from a model's title reply.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	lower := strings.ToLower(title)
	for _, p := range titlePrefixes {
		if strings.HasPrefix(lower, p) {
			// Lowercasing can change byte lengths, so cut by rune count.
			title = dropRunes(title, utf8.RuneCountInString(p))
			break
		}
	}
	title = strings.TrimSpace(title)
	title = strings.Trim(title, titleQuotes)
	return strings.TrimSpace(title)
}

// FallbackTitle is the first five words of the idea.
func FallbackTitle(idea string) string {
	words := strings.Fields(idea)
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}

func dropRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}
