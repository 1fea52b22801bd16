// Package metrics records timing and outcome for every upstream call the
// story pipeline makes.
package metrics

import "time"

// Metric is one recorded pipeline call, after retries.
type Metric struct {
	// Attribution (for filtering/aggregation)
	StoryID  string `json:"story_id,omitempty" yaml:"story_id,omitempty"`
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Step     string `json:"step" yaml:"step"`                     // idea, title, character, story, image or narration
	Page     int    `json:"page,omitempty" yaml:"page,omitempty"` // 1-based, 0 for story-level steps

	// Outcome
	Attempts  uint   `json:"attempts" yaml:"attempts"`
	Success   bool   `json:"success" yaml:"success"`
	ErrorKind string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`

	// Timing
	Seconds   float64   `json:"seconds" yaml:"seconds"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Duration returns the call time.
func (m Metric) Duration() time.Duration {
	return time.Duration(m.Seconds * float64(time.Second))
}
