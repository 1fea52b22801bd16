// Package pipeline drives story generation: title, character description,
// the structured page array, then image and narration for each page in order.
// Every state transition is published to an Observer as a snapshot; observers
// never touch the pipeline's own state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jackzampolin/cuentos/internal/metrics"
	"github.com/jackzampolin/cuentos/internal/providers"
	"github.com/jackzampolin/cuentos/internal/story"
)

// Progress messages shown while a step is in flight.
const (
	MsgIdea      = "Buscando una idea..."
	MsgTitle     = "Creando un título mágico..."
	MsgCharacter = "Creando la base de tu cuento..."
	MsgStory     = "Escribiendo la historia..."
)

// MsgPage is the progress message for page i (1-based) of n.
func MsgPage(i, n int) string {
	return fmt.Sprintf("Creando página %d/%d... (Ilustración y narración)", i, n)
}

// State is a step of the generation state machine.
type State string

const (
	StateIdle      State = "idle"
	StateTitle     State = "title"
	StateCharacter State = "character"
	StateStory     State = "story"
	StatePages     State = "pages"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
)

// Terminal reports whether no further events follow.
func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }

// FailurePolicy decides what a failed page image does to the story.
type FailurePolicy string

const (
	// PolicyDegrade replaces a failed image with the error placeholder and
	// continues. Configuration errors still abort.
	PolicyDegrade FailurePolicy = "degrade"
	// PolicyAbort discards the whole story on any media failure.
	PolicyAbort FailurePolicy = "abort"
)

// ParsePolicy parses a policy name; empty means degrade.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicyDegrade:
		return PolicyDegrade, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown media failure policy %q (want degrade or abort)", s)
	}
}

// Event is one published state transition.
type Event struct {
	State   State
	Loading story.LoadingState
	// Story is a snapshot, nil before the page array exists and after a failure.
	Story *story.Story
	// Page is the index of the page just updated, or -1.
	Page int
	Err  error
}

// Observer receives events in order. It is never called concurrently.
type Observer func(Event)

// Config tunes the orchestrator.
type Config struct {
	Policy            FailurePolicy
	RetryAttempts     uint
	RetryDelay        time.Duration
	MaxRetryDelay     time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	Burst             int
	Metrics           *metrics.Recorder // nil disables call metrics
	Logger            *slog.Logger
}

// Orchestrator runs the generation pipeline against a Strategy.
type Orchestrator struct {
	strategy Strategy
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates an orchestrator. The strategy is required.
func New(strategy Strategy, cfg Config) (*Orchestrator, error) {
	if strategy == nil {
		return nil, story.ConfigError(errors.New("pipeline: strategy is required"))
	}
	policy, err := ParsePolicy(string(cfg.Policy))
	if err != nil {
		return nil, story.ConfigError(err)
	}
	cfg.Policy = policy
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	o := &Orchestrator{
		strategy: strategy,
		cfg:      cfg,
		logger:   cfg.Logger.With("strategy", strategy.Name()),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 2
		}
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return o, nil
}

// Strategy returns the strategy in use.
func (o *Orchestrator) Strategy() Strategy { return o.strategy }

// Policy returns the media failure policy in use.
func (o *Orchestrator) Policy() FailurePolicy { return o.cfg.Policy }

// SuggestIdea asks the strategy for an idea, publishing the loading state.
func (o *Orchestrator) SuggestIdea(ctx context.Context, observe Observer) string {
	r := newRun(o, observe)
	r.setLoading(StateIdle, MsgIdea)
	defer r.clearLoading()
	start := time.Now()
	idea := o.strategy.SuggestIdea(ctx)
	o.cfg.Metrics.Record(ctx, metrics.Metric{
		Strategy: o.strategy.Name(),
		Step:     "idea",
		Attempts: 1,
		Success:  true,
		Seconds:  time.Since(start).Seconds(),
	})
	return idea
}

// Run generates a story for req. On success the finished story is returned.
// On failure the error is classified (see story.KindOf) and no story is
// returned. The last event always has Loading.IsLoading false.
func (o *Orchestrator) Run(ctx context.Context, req story.Request, observe Observer) (result *story.Story, err error) {
	r := newRun(o, observe)
	start := time.Now()

	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.loading = story.LoadingState{}
		if err != nil || r.state != StateComplete {
			if err == nil {
				err = errors.New("pipeline stopped before completion")
			}
			r.state = StateFailed
			r.story = nil
			result = nil
			o.logger.Warn("story generation failed", "error", err, "elapsed", time.Since(start))
			r.emitLocked(-1, err)
			return
		}
		o.logger.Info("story generation complete", "title", r.story.Title, "pages", len(r.story.Pages), "elapsed", time.Since(start))
		r.emitLocked(-1, nil)
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p, ok := o.strategy.(Preflighter); ok {
		if err := p.Preflight(req); err != nil {
			return nil, err
		}
	}

	r.highQuality = req.HighQuality()

	r.setLoading(StateTitle, MsgTitle)
	var storyTitle string
	if terr := o.call(ctx, "title", 0, func(ctx context.Context) error {
		var cerr error
		storyTitle, cerr = o.strategy.Title(ctx, req.Idea)
		return cerr
	}); terr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if story.KindOf(terr) == story.KindConfig {
			return nil, terr
		}
		storyTitle = story.FallbackTitle(req.Idea)
		o.logger.Warn("title generation failed, using idea prefix", "error", terr, "title", storyTitle)
	}

	r.setLoading(StateCharacter, MsgCharacter)
	var characterDesc string
	if err := o.call(ctx, "character", 0, func(ctx context.Context) error {
		var cerr error
		characterDesc, cerr = o.strategy.CharacterDescription(ctx, req.Idea)
		return cerr
	}); err != nil {
		return nil, err
	}

	r.setLoading(StateStory, MsgStory)
	var pages []story.Page
	if err := o.call(ctx, "story", 0, func(ctx context.Context) error {
		var cerr error
		pages, cerr = o.strategy.Story(ctx, req, characterDesc)
		return cerr
	}); err != nil {
		return nil, err
	}
	pages, err = o.fitPages(pages, req.NumPages)
	if err != nil {
		return nil, err
	}
	for i := range pages {
		pages[i].ID = i
		pages[i].ImageURL, pages[i].AudioURL, pages[i].PCMData = "", "", ""
	}
	r.publishStory(&story.Story{Title: storyTitle, Pages: pages})

	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.setLoading(StatePages, MsgPage(i+1, len(pages)))
		if err := o.runPage(ctx, r, pages[i]); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.state = StateComplete
	result = r.story.Clone()
	r.mu.Unlock()
	return result, nil
}

// fitPages enforces the requested count. Extra pages are dropped; too few
// cannot be repaired.
func (o *Orchestrator) fitPages(pages []story.Page, want int) ([]story.Page, error) {
	switch {
	case len(pages) == want:
		return pages, nil
	case len(pages) > want:
		o.logger.Warn("model returned extra pages, truncating", "got", len(pages), "want", want)
		return pages[:want], nil
	default:
		return nil, story.ParseError(fmt.Errorf("%w: expected %d pages, got %d", story.ErrInvalidStory, want, len(pages)))
	}
}

// runPage acquires the image and narration for one page concurrently and
// merges each result as soon as it arrives.
func (o *Orchestrator) runPage(ctx context.Context, r *run, page story.Page) error {
	logger := o.logger.With("page", page.ID+1)
	highQuality := r.highQuality

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var ref string
		err := o.call(gctx, "image", page.ID+1, func(ctx context.Context) error {
			var cerr error
			ref, cerr = o.strategy.Image(ctx, page.ImagePrompt, highQuality)
			return cerr
		})
		if err != nil {
			if o.cfg.Policy == PolicyAbort || gctx.Err() != nil || story.KindOf(err) == story.KindConfig {
				return fmt.Errorf("page %d image: %w", page.ID+1, err)
			}
			logger.Warn("image generation failed, using error placeholder", "error", err)
			ref = providers.PlaceholderURL(true)
		}
		r.mergeImage(page.ID, ref)
		return nil
	})
	g.Go(func() error {
		var audio Audio
		err := o.call(gctx, "narration", page.ID+1, func(ctx context.Context) error {
			var cerr error
			audio, cerr = o.strategy.Narration(ctx, page.Text)
			return cerr
		})
		if err != nil {
			// Narration has no placeholder; a page without audio can never be exported.
			return fmt.Errorf("page %d narration: %w", page.ID+1, err)
		}
		r.mergeAudio(page.ID, audio)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Debug("page complete")
	return nil
}

// call runs fn under the rate limiter, retrying transient upstream failures.
// Each call is recorded once, after its last attempt. page is 1-based, 0
// for story-level steps.
func (o *Orchestrator) call(ctx context.Context, step string, page int, fn func(context.Context) error) error {
	start := time.Now()
	var attempts uint
	err := retry.Do(
		func() error {
			attempts++
			if o.limiter != nil {
				if err := o.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(o.cfg.RetryAttempts),
		retry.Delay(o.cfg.RetryDelay),
		retry.MaxDelay(o.cfg.MaxRetryDelay),
		retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
			if d := providers.RetryAfter(err); d > 0 {
				return d
			}
			return retry.BackOffDelay(n, err, cfg)
		}),
		retry.RetryIf(providers.IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Warn("retrying upstream call", "step", step, "attempt", n+1, "error", err)
		}),
	)
	o.cfg.Metrics.Record(ctx, metrics.Metric{
		Strategy:  o.strategy.Name(),
		Step:      step,
		Page:      page,
		Attempts:  attempts,
		Success:   err == nil,
		ErrorKind: string(story.KindOf(err)),
		Seconds:   time.Since(start).Seconds(),
	})
	return err
}

// run is the mutable state of one Run. The orchestrator is its only writer.
type run struct {
	o           *Orchestrator
	observe     Observer
	highQuality bool

	mu      sync.Mutex
	state   State
	loading story.LoadingState
	story   *story.Story
}

func newRun(o *Orchestrator, observe Observer) *run {
	return &run{o: o, observe: observe, state: StateIdle}
}

func (r *run) setLoading(state State, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.loading = story.LoadingState{IsLoading: true, Message: msg}
	r.o.logger.Info("pipeline step", "state", state, "message", msg)
	r.emitLocked(-1, nil)
}

func (r *run) clearLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = story.LoadingState{}
	r.emitLocked(-1, nil)
}

func (r *run) publishStory(s *story.Story) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StatePages
	r.story = s.Clone()
	r.emitLocked(-1, nil)
}

func (r *run) mergeImage(id int, ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.story.Pages[id].ImageURL = ref
	r.emitLocked(id, nil)
}

func (r *run) mergeAudio(id int, a Audio) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.story.Pages[id].AudioURL = a.URL
	r.story.Pages[id].PCMData = a.PCM
	r.emitLocked(id, nil)
}

func (r *run) emitLocked(page int, err error) {
	if r.observe == nil {
		return
	}
	r.observe(Event{
		State:   r.state,
		Loading: r.loading,
		Story:   r.story.Clone(),
		Page:    page,
		Err:     err,
	})
}
