// Package jobs runs story generation sessions in the background and keeps
// their progress in a session store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/cuentos/internal/metrics"
	"github.com/jackzampolin/cuentos/internal/pipeline"
	"github.com/jackzampolin/cuentos/internal/store"
	"github.com/jackzampolin/cuentos/internal/story"
)

// Factory builds an orchestrator for a strategy name. An empty name selects
// the default strategy; the returned name is the one resolved.
type Factory func(strategy string) (name string, o *pipeline.Orchestrator, err error)

// Manager starts pipeline runs and records every published snapshot.
// It owns the cancel function of each running session.
type Manager struct {
	store   store.Store
	factory Factory
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running map[string]*handle
	wg      sync.WaitGroup
}

// handle is a running session. mu serializes snapshot writes with Delete.
type handle struct {
	cancel  context.CancelFunc
	mu      sync.Mutex
	deleted bool
}

// terminalWriteTimeout bounds the final snapshot write of a cancelled run.
const terminalWriteTimeout = 5 * time.Second

// Config configures a Manager.
type Config struct {
	Store   store.Store
	Factory Factory
	Logger  *slog.Logger
}

// NewManager creates a job manager. Store and Factory are required.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("jobs: store is required")
	}
	if cfg.Factory == nil {
		return nil, errors.New("jobs: factory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   cfg.Store,
		factory: cfg.Factory,
		logger:  logger,
		now:     time.Now,
		running: make(map[string]*handle),
	}, nil
}

// Create validates req, stores a new session and starts generating in the
// background. Validation and strategy errors are returned before anything
// is stored.
func (m *Manager) Create(ctx context.Context, req story.Request, strategy string) (*store.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	name, orch, err := m.factory(strategy)
	if err != nil {
		return nil, err
	}

	now := m.now()
	sess := &store.Session{
		ID:        uuid.NewString(),
		Request:   req,
		Strategy:  name,
		State:     string(pipeline.StateIdle),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	runCtx, cancel := context.WithCancel(metrics.WithStoryID(context.Background(), sess.ID))
	h := &handle{cancel: cancel}
	m.mu.Lock()
	m.running[sess.ID] = h
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx, h, orch, *sess)

	m.logger.Info("story session started", "id", sess.ID, "strategy", name, "pages", req.NumPages)
	return sess, nil
}

func (m *Manager) run(ctx context.Context, h *handle, orch *pipeline.Orchestrator, sess store.Session) {
	defer m.wg.Done()
	defer m.finish(sess.ID)

	logger := m.logger.With("id", sess.ID)
	observe := func(ev pipeline.Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		// After a cancel only the terminal snapshot is kept, so a run stopped
		// by Shutdown is not left stored as loading. Deleted runs keep nothing.
		if h.deleted || (ctx.Err() != nil && !ev.State.Terminal()) {
			return
		}
		sess.State = string(ev.State)
		sess.Loading = ev.Loading
		sess.Story = ev.Story
		if ev.Err != nil {
			sess.Error = story.UserMessage(ev.Err)
			sess.ErrorKind = story.KindOf(ev.Err)
		}
		sess.UpdatedAt = m.now()
		putCtx := ctx
		if ctx.Err() != nil {
			var cancel context.CancelFunc
			putCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
			defer cancel()
		}
		if err := m.store.Put(putCtx, &sess); err != nil {
			logger.Warn("failed to store session snapshot", "error", err)
		}
	}

	if _, err := orch.Run(ctx, sess.Request, observe); err != nil {
		if ctx.Err() != nil {
			logger.Info("story session cancelled")
			return
		}
		logger.Warn("story session failed", "error", err)
		return
	}
	logger.Info("story session complete")
}

func (m *Manager) finish(id string) {
	m.mu.Lock()
	h, ok := m.running[id]
	delete(m.running, id)
	m.mu.Unlock()
	if ok {
		h.cancel()
	}
}

// Get returns the latest snapshot of a session.
func (m *Manager) Get(ctx context.Context, id string) (*store.Session, error) {
	return m.store.Get(ctx, id)
}

// Running reports whether a session's pipeline is still in flight.
func (m *Manager) Running(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[id]
	return ok
}

// Delete cancels a running session and discards it. Results published
// after the cancel are never stored.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	h, ok := m.running[id]
	m.mu.Unlock()
	if ok {
		h.cancel()
		h.mu.Lock()
		h.deleted = true
		defer h.mu.Unlock()
	} else if _, err := m.store.Get(ctx, id); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.logger.Info("story session deleted", "id", id, "was_running", ok)
	return nil
}

// SuggestIdea asks the named strategy for a story idea.
func (m *Manager) SuggestIdea(ctx context.Context, strategy string) (string, error) {
	_, orch, err := m.factory(strategy)
	if err != nil {
		return "", err
	}
	return orch.SuggestIdea(ctx, nil), nil
}

// Shutdown cancels every running session and waits for them to stop, or
// for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, h := range m.running {
		h.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every running session has stopped.
func (m *Manager) Wait() {
	m.wg.Wait()
}
