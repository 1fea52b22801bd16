// Package store keeps story generation sessions for the HTTP service.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/cuentos/internal/story"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long a session lives after its last write.
const DefaultTTL = 2 * time.Hour

// Session is the persisted view of one pipeline run.
type Session struct {
	ID        string             `json:"id"`
	Request   story.Request      `json:"request"`
	Strategy  string             `json:"strategy,omitempty"`
	State     string             `json:"state"`
	Loading   story.LoadingState `json:"loading"`
	Story     *story.Story       `json:"story,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorKind story.Kind         `json:"error_kind,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Ready reports whether the session's story can be exported.
func (s *Session) Ready() bool { return s.Story.Ready() }

// Store persists sessions.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Config selects and configures a Store implementation.
type Config struct {
	Type          string // "memory" (default) or "redis"
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Logger        *slog.Logger
}

// New creates the configured Store.
func New(cfg Config) (Store, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemory(cfg.TTL), nil
	case "redis":
		return NewRedis(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
			Logger:   cfg.Logger,
		})
	}
	return nil, fmt.Errorf("unknown store type %q (want memory or redis)", cfg.Type)
}
