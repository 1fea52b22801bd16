// Package title holds the short-title prompt.
package title

import (
	_ "embed"

	"github.com/jackzampolin/cuentos/internal/prompts"
)

//go:embed title.tmpl
var promptText string

// PromptKey identifies the title prompt in the resolver and config overrides.
const PromptKey = "story.title"

// Data is the template input.
type Data struct {
	Idea string
}

// RegisterPrompts registers the title prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         PromptKey,
		Text:        promptText,
		Description: "Short Spanish title of at most five words",
	})
}
