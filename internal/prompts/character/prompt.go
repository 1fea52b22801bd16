// Package character holds the prompt describing the main character's appearance.
package character

import (
	_ "embed"

	"github.com/jackzampolin/cuentos/internal/prompts"
)

//go:embed character.tmpl
var promptText string

// PromptKey identifies the character prompt in the resolver and config overrides.
const PromptKey = "story.character"

// Data is the template input.
type Data struct {
	Idea string
}

// RegisterPrompts registers the character prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         PromptKey,
		Text:        promptText,
		Description: "English paragraph describing the main character, reused in every image prompt",
	})
}
