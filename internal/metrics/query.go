package metrics

import "time"

// Filter specifies query filters. Zero fields match everything.
type Filter struct {
	StoryID  string
	Strategy string
	Step     string
	After    time.Time
	Success  *bool // nil = any, true = success only, false = errors only
}

func (f Filter) match(m Metric) bool {
	if f.StoryID != "" && m.StoryID != f.StoryID {
		return false
	}
	if f.Strategy != "" && m.Strategy != f.Strategy {
		return false
	}
	if f.Step != "" && m.Step != f.Step {
		return false
	}
	if !f.After.IsZero() && !m.CreatedAt.After(f.After) {
		return false
	}
	if f.Success != nil && m.Success != *f.Success {
		return false
	}
	return true
}

// List returns metrics matching the filter, newest first.
// If limit is 0, returns all matching metrics.
func (r *Recorder) List(f Filter, limit int) []Metric {
	if r == nil {
		return nil
	}
	all := r.snapshot()
	out := make([]Metric, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if !f.match(all[i]) {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
