package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackzampolin/cuentos/internal/pipeline"
	"github.com/jackzampolin/cuentos/internal/providers"
	"github.com/jackzampolin/cuentos/internal/store"
	"github.com/jackzampolin/cuentos/internal/story"
)

// testStrategy produces a story without remote calls. When block is set,
// narration waits for the context to end.
type testStrategy struct {
	block   bool
	started chan struct{}
}

func (s *testStrategy) Name() string                       { return "test" }
func (s *testStrategy) SuggestIdea(context.Context) string { return "Un búho que no puede dormir." }

func (s *testStrategy) Title(context.Context, string) (string, error) {
	return "El Búho Despierto", nil
}

func (s *testStrategy) CharacterDescription(context.Context, string) (string, error) {
	return "a small brown owl", nil
}

func (s *testStrategy) Story(_ context.Context, req story.Request, _ string) ([]story.Page, error) {
	pages := make([]story.Page, req.NumPages)
	for i := range pages {
		pages[i] = story.Page{Text: fmt.Sprintf("Página %d.", i+1), ImagePrompt: "an owl"}
	}
	return pages, nil
}

func (s *testStrategy) Image(context.Context, string, bool) (string, error) {
	return providers.PlaceholderURL(false), nil
}

func (s *testStrategy) Narration(ctx context.Context, _ string) (pipeline.Audio, error) {
	if s.block {
		select {
		case s.started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return pipeline.Audio{}, ctx.Err()
	}
	return pipeline.Audio{URL: "data:audio/wav;base64,AAAA", PCM: "AAAA"}, nil
}

func newTestManager(t *testing.T, strategy pipeline.Strategy) (*Manager, store.Store) {
	t.Helper()
	st := store.NewMemory(time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := NewManager(Config{
		Store: st,
		Factory: func(name string) (string, *pipeline.Orchestrator, error) {
			if name != "" && name != "test" {
				return name, nil, story.ConfigError(fmt.Errorf("unknown strategy %q", name))
			}
			o, err := pipeline.New(strategy, pipeline.Config{Logger: logger})
			return "test", o, err
		},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return mgr, st
}

func validRequest() story.Request {
	return story.Request{Idea: "Un búho", AgeRange: story.AgeEarly, NumPages: 2, Quality: story.QualityPlaceholder}
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Error("expected error without store")
	}
	if _, err := NewManager(Config{Store: store.NewMemory(time.Minute)}); err == nil {
		t.Error("expected error without factory")
	}
}

func TestManager_RunsToCompletion(t *testing.T) {
	mgr, _ := newTestManager(t, &testStrategy{})
	ctx := context.Background()

	sess, err := mgr.Create(ctx, validRequest(), "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.Strategy != "test" || sess.State != string(pipeline.StateIdle) {
		t.Errorf("unexpected initial session %+v", sess)
	}

	mgr.Wait()
	if mgr.Running(sess.ID) {
		t.Error("session still marked running")
	}

	got, err := mgr.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != string(pipeline.StateComplete) || !got.Ready() {
		t.Fatalf("session not complete: state=%s error=%q", got.State, got.Error)
	}
	if got.Story.Title != "El Búho Despierto" || len(got.Story.Pages) != 2 {
		t.Errorf("unexpected story %+v", got.Story)
	}
	if got.Loading.IsLoading {
		t.Error("complete session still loading")
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Error("UpdatedAt before CreatedAt")
	}
}

func TestManager_CreateRejectsBeforeStoring(t *testing.T) {
	mgr, _ := newTestManager(t, &testStrategy{})
	ctx := context.Background()

	bad := validRequest()
	bad.Idea = "  "
	if _, err := mgr.Create(ctx, bad, ""); !errors.Is(err, story.ErrEmptyIdea) {
		t.Errorf("expected ErrEmptyIdea, got %v", err)
	}
	if _, err := mgr.Create(ctx, validRequest(), "other"); story.KindOf(err) != story.KindConfig {
		t.Errorf("expected config error, got %v", err)
	}
	mgr.Wait()
}

func TestManager_DeleteCancelsAndIgnoresLateResults(t *testing.T) {
	strategy := &testStrategy{block: true, started: make(chan struct{}, 1)}
	mgr, st := newTestManager(t, strategy)
	ctx := context.Background()

	sess, err := mgr.Create(ctx, validRequest(), "test")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	select {
	case <-strategy.started:
	case <-time.After(5 * time.Second):
		t.Fatal("narration never started")
	}
	if !mgr.Running(sess.ID) {
		t.Fatal("session should be running")
	}

	if err := mgr.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	mgr.Wait()

	if _, err := st.Get(ctx, sess.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted session reappeared: %v", err)
	}
	if err := mgr.Delete(ctx, sess.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}

func TestManager_Shutdown(t *testing.T) {
	strategy := &testStrategy{block: true, started: make(chan struct{}, 1)}
	mgr, _ := newTestManager(t, strategy)

	if _, err := mgr.Create(context.Background(), validRequest(), ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	<-strategy.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestManager_ShutdownStoresFailedSnapshot(t *testing.T) {
	strategy := &testStrategy{block: true, started: make(chan struct{}, 1)}
	mgr, st := newTestManager(t, strategy)

	sess, err := mgr.Create(context.Background(), validRequest(), "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	<-strategy.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	got, err := st.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != string(pipeline.StateFailed) {
		t.Errorf("State = %q, want %q", got.State, pipeline.StateFailed)
	}
	if got.Loading.IsLoading {
		t.Error("stopped session still stored as loading")
	}
	if got.Error == "" || got.Story != nil {
		t.Errorf("unexpected terminal snapshot: error=%q story=%v", got.Error, got.Story)
	}
}

func TestManager_SuggestIdea(t *testing.T) {
	mgr, _ := newTestManager(t, &testStrategy{})

	idea, err := mgr.SuggestIdea(context.Background(), "")
	if err != nil || idea != "Un búho que no puede dormir." {
		t.Errorf("SuggestIdea() = %q, %v", idea, err)
	}
	if _, err := mgr.SuggestIdea(context.Background(), "other"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
