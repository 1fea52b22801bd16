package metrics

import (
	"sort"
	"time"
)

// Summary provides a summary of metrics for a filter.
type Summary struct {
	Count          int     `json:"count" yaml:"count"`
	SuccessCount   int     `json:"success_count" yaml:"success_count"`
	ErrorCount     int     `json:"error_count" yaml:"error_count"`
	Retries        uint    `json:"retries" yaml:"retries"`
	TotalSeconds   float64 `json:"total_seconds" yaml:"total_seconds"`
	AvgTimeSeconds float64 `json:"avg_time_seconds" yaml:"avg_time_seconds"`
	MaxTimeSeconds float64 `json:"max_time_seconds" yaml:"max_time_seconds"`
}

// StepSummary is the summary for one pipeline step.
type StepSummary struct {
	Step    string `json:"step" yaml:"step"`
	Summary `yaml:",inline"`
}

// Summarize aggregates a list of metrics.
func Summarize(metrics []Metric) Summary {
	s := Summary{Count: len(metrics)}
	for _, m := range metrics {
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		if m.Attempts > 1 {
			s.Retries += m.Attempts - 1
		}
		s.TotalSeconds += m.Seconds
		if m.Seconds > s.MaxTimeSeconds {
			s.MaxTimeSeconds = m.Seconds
		}
	}
	if s.Count > 0 {
		s.AvgTimeSeconds = s.TotalSeconds / float64(s.Count)
	}
	return s
}

// GetSummary returns a summary of metrics matching the filter.
func (r *Recorder) GetSummary(f Filter) Summary {
	return Summarize(r.List(f, 0))
}

// stepOrder is the order steps run in a story.
var stepOrder = map[string]int{"idea": 0, "title": 1, "character": 2, "story": 3, "image": 4, "narration": 5}

// ByStep returns one summary per step, in pipeline order.
func (r *Recorder) ByStep(f Filter) []StepSummary {
	groups := make(map[string][]Metric)
	for _, m := range r.List(f, 0) {
		groups[m.Step] = append(groups[m.Step], m)
	}

	out := make([]StepSummary, 0, len(groups))
	for step, ms := range groups {
		out = append(out, StepSummary{Step: step, Summary: Summarize(ms)})
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := stepOrder[out[i].Step]
		oj, jok := stepOrder[out[j].Step]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return out[i].Step < out[j].Step
	})
	return out
}

// TotalTime returns the summed call time for metrics matching the filter.
func (r *Recorder) TotalTime(f Filter) time.Duration {
	var total time.Duration
	for _, m := range r.List(f, 0) {
		total += m.Duration()
	}
	return total
}
