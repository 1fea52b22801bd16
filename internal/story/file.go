package story

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile saves a story snapshot as indented JSON, creating parent
// directories.
func WriteFile(path string, s *Story) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode story: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create story directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a snapshot written by WriteFile. Page IDs are renumbered
// to match their order.
func ReadFile(path string) (*Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Story
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(s.Pages) == 0 {
		return nil, fmt.Errorf("%s: %w: no pages", path, ErrInvalidStory)
	}
	for i := range s.Pages {
		s.Pages[i].ID = i
	}
	return &s, nil
}
