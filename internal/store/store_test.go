package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/cuentos/internal/story"
)

func testSession() *Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &Session{
		ID:        uuid.NewString(),
		Request:   story.Request{Idea: "Un dragón", AgeRange: story.AgeMiddle, NumPages: 2, Quality: story.QualityPlaceholder},
		State:     "pages",
		Loading:   story.LoadingState{IsLoading: true, Message: "Creando página 1/2... (Ilustración y narración)"},
		Story:     &story.Story{Title: "El Dragón", Pages: []story.Page{{ID: 0, Text: "uno"}, {ID: 1, Text: "dos"}}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	sess := testSession()

	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != "pages" || got.Story.Title != "El Dragón" || len(got.Story.Pages) != 2 {
		t.Errorf("Get() = %+v", got)
	}
	if !got.Loading.IsLoading || got.Request.AgeRange != story.AgeMiddle {
		t.Errorf("loading/request not round-tripped: %+v", got)
	}

	// Mutating the returned copy must not change the stored session.
	got.Story.Title = "otro"
	again, _ := s.Get(ctx, sess.ID)
	if again.Story.Title != "El Dragón" {
		t.Errorf("stored session was mutated through a returned copy")
	}

	sess.State = "complete"
	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put(update) error = %v", err)
	}
	got, _ = s.Get(ctx, sess.ID)
	if got.State != "complete" {
		t.Errorf("State = %q after update", got.State)
	}

	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory(time.Minute)
	defer m.Close()
	exerciseStore(t, m)
}

func TestMemory_Expires(t *testing.T) {
	m := NewMemory(50 * time.Millisecond)
	defer m.Close()
	sess := testSession()
	if err := m.Put(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	time.Sleep(120 * time.Millisecond)
	if _, err := m.Get(context.Background(), sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(expired) error = %v, want ErrNotFound", err)
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Put(ctx, testSession()); !errors.Is(err, context.Canceled) {
		t.Errorf("Put(cancelled) error = %v", err)
	}
}

func TestSession_Ready(t *testing.T) {
	s := testSession()
	if s.Ready() {
		t.Error("session without media should not be ready")
	}
	for i := range s.Story.Pages {
		s.Story.Pages[i].ImageURL = "data:image/jpeg;base64,AA=="
		s.Story.Pages[i].PCMData = "AAA="
	}
	if !s.Ready() {
		t.Error("session with media should be ready")
	}
	s.Story = nil
	if s.Ready() {
		t.Error("session without story should not be ready")
	}
}

func TestNew(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New(memory) error = %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("New() = %T, want *Memory", s)
	}
	if _, err := New(Config{Type: "redis"}); err == nil {
		t.Error("New(redis) without address should fail")
	}
	if _, err := New(Config{Type: "etcd"}); err == nil {
		t.Error("New(etcd) should fail")
	}
}

func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("CUENTOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CUENTOS_TEST_REDIS_ADDR not set")
	}
	r, err := NewRedis(RedisConfig{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	exerciseStore(t, r)
}
