package export

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// Artifact is a named byte buffer produced by an export.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Sink delivers artifacts to the environment: a directory, memory, or an
// HTTP response.
type Sink interface {
	Deliver(ctx context.Context, a Artifact) error
}

// DirSink writes artifacts into a directory, creating it as needed.
type DirSink struct {
	Dir string
}

// Deliver writes a to Dir/a.Name.
func (s DirSink) Deliver(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(s.Dir, a.Name)
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Path returns where an artifact named name is written.
func (s DirSink) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// MemorySink keeps delivered artifacts keyed by name.
type MemorySink struct {
	mu        sync.Mutex
	artifacts map[string]Artifact
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{artifacts: make(map[string]Artifact)}
}

// Deliver stores a, replacing any artifact with the same name.
func (s *MemorySink) Deliver(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[a.Name] = a
	return nil
}

// Get returns the artifact delivered under name.
func (s *MemorySink) Get(name string) (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[name]
	return a, ok
}

// Names lists delivered artifact names in sorted order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResponseSink streams an artifact as an HTTP attachment.
type ResponseSink struct {
	W http.ResponseWriter
}

// Deliver writes headers and body for a.
func (s ResponseSink) Deliver(_ context.Context, a Artifact) error {
	h := s.W.Header()
	h.Set("Content-Type", a.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	h.Set("Content-Length", strconv.Itoa(len(a.Data)))
	s.W.WriteHeader(http.StatusOK)
	_, err := s.W.Write(a.Data)
	return err
}
