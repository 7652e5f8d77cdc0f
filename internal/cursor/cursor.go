// Package cursor persists the pagination checkpoint between runs.
//
// The cursor is a single opaque token in a file. Its presence means a full
// pass is in progress and the next run resumes from it; its absence means
// the next run starts a fresh full resync. The orchestrator writes it only
// after a page is fully persisted and deletes it when the final page
// completes, so the file can never point past uncommitted work.
package cursor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store reads and writes the cursor file.
type Store struct {
	path string
}

// NewStore creates a Store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the saved cursor and whether one is present.
// A missing file is not an error - it means "start a full resync".
func (s *Store) Load() (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cursor file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		// An empty file is treated the same as a missing one.
		return "", false, nil
	}

	return token, true, nil
}

// Save writes the cursor atomically via a temp file rename.
func (s *Store) Save(token string) error {
	if token == "" {
		return fmt.Errorf("refusing to save an empty cursor")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cursor directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write temp cursor file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cursor file: %w", err)
	}

	return nil
}

// Clear removes the cursor file, marking a fully completed pass.
// Clearing an already-absent cursor is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cursor file: %w", err)
	}
	return nil
}
