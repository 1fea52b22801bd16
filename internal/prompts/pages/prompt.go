// Package pages holds the prompt and output schema for the full story.
package pages

import (
	_ "embed"

	"github.com/jackzampolin/cuentos/internal/prompts"
)

//go:embed pages.tmpl
var promptText string

// PromptKey identifies the story prompt in the resolver and config overrides.
const PromptKey = "story.pages"

// Data is the template input.
type Data struct {
	Idea                 string
	AgeRange             string // Spanish label, e.g. "6 a 8 años"
	NumPages             int
	CharacterDescription string
}

// RegisterPrompts registers the story prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         PromptKey,
		Text:        promptText,
		Description: "Full story as a JSON array of {text, imagePrompt}",
	})
}
