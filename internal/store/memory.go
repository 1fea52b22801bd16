package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory is an in-process Store backed by go-cache. Entries hold the
// session's JSON encoding.
type Memory struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemory creates a Memory store whose entries expire ttl after their last write.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{cache: cache.New(ttl, ttl/2), ttl: ttl}
}

// Put saves s, refreshing its expiry.
func (m *Memory) Put(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	m.cache.Set(s.ID, data, m.ttl)
	return nil
}

// Get loads the session with id.
func (m *Memory) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(v.([]byte), &s); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

// Delete removes the session with id. Missing sessions are not an error.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.cache.Delete(id)
	return nil
}

// Close flushes all sessions.
func (m *Memory) Close() error {
	m.cache.Flush()
	return nil
}

var _ Store = (*Memory)(nil)
