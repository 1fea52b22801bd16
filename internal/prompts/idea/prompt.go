// Package idea holds the prompt that suggests story ideas.
package idea

import (
	_ "embed"

	"github.com/jackzampolin/cuentos/internal/prompts"
)

//go:embed idea.tmpl
var promptText string

// PromptKey identifies the idea prompt in the resolver and config overrides.
const PromptKey = "story.idea"

// RegisterPrompts registers the idea prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         PromptKey,
		Text:        promptText,
		Description: "Suggests three one-sentence story ideas, one per line",
	})
}
