package pages

// Schema validates the story output: a non-empty array of pages, each with
// Spanish text and an English image prompt.
var Schema = []byte(`{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "properties": {
      "text": {"type": "string", "minLength": 1},
      "imagePrompt": {"type": "string", "minLength": 1}
    },
    "required": ["text", "imagePrompt"]
  }
}`)
