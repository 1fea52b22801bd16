package metrics

import (
	"context"
	"sync"
	"time"
)

// DefaultLimit is how many metrics a Recorder keeps.
const DefaultLimit = 10000

// Recorder keeps the most recent metrics in memory. It is safe for
// concurrent use; a nil Recorder discards everything.
type Recorder struct {
	mu      sync.RWMutex
	metrics []Metric
	next    int
	full    bool
	now     func() time.Time
}

// NewRecorder creates a recorder holding at most limit metrics.
// A limit <= 0 uses DefaultLimit.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recorder{metrics: make([]Metric, limit), now: time.Now}
}

// Record stores a metric, attributing it to the story in ctx if the
// metric has none. The oldest metric is dropped when full.
func (r *Recorder) Record(ctx context.Context, m Metric) {
	if r == nil {
		return
	}
	if m.StoryID == "" {
		m.StoryID = StoryIDFrom(ctx)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[r.next] = m
	r.next = (r.next + 1) % len(r.metrics)
	if r.next == 0 {
		r.full = true
	}
}

// Len returns the number of stored metrics.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.metrics)
	}
	return r.next
}

// snapshot returns stored metrics oldest first.
func (r *Recorder) snapshot() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		return append([]Metric(nil), r.metrics[:r.next]...)
	}
	out := make([]Metric, 0, len(r.metrics))
	out = append(out, r.metrics[r.next:]...)
	return append(out, r.metrics[:r.next]...)
}

type storyIDKey struct{}

// WithStoryID attributes metrics recorded under ctx to a story session.
func WithStoryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, storyIDKey{}, id)
}

// StoryIDFrom returns the story session in ctx, or "".
func StoryIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(storyIDKey{}).(string)
	return id
}
