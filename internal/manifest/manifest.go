// Package manifest writes the scan manifest: an ordered JSONL listing of
// every (id, title) entry seen during a completed full pass.
//
// The manifest exists for external auditing only. Resume logic never reads
// it - the cursor file is the sole source of resume state.
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one listed record, in the order the listing returned it.
type Entry struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Header is the first line of the manifest file.
type Header struct {
	RunID       string    `json:"run_id"`
	CompletedAt time.Time `json:"completed_at"`
	Entries     int       `json:"entries"`
}

// Write persists the manifest atomically: header line first, then one JSON
// object per entry. An existing manifest from a previous pass is replaced.
func Write(path, runID string, completedAt time.Time, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	header := Header{RunID: runID, CompletedAt: completedAt.UTC(), Entries: len(entries)}
	if err := enc.Encode(header); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write manifest header: %w", err)
	}

	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("failed to write manifest entry %s: %w", e.ID, err)
		}
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to flush manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp manifest: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename manifest: %w", err)
	}

	return nil
}

// Read parses a manifest file back into its header and entries.
func Read(path string) (*Header, []Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to read manifest header: %w", err)
		}
		return nil, nil, fmt.Errorf("manifest is empty")
	}

	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, nil, fmt.Errorf("failed to parse manifest header: %w", err)
	}

	var entries []Entry
	line := 1
	for scanner.Scan() {
		line++
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, nil, fmt.Errorf("invalid manifest entry at line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return &header, entries, nil
}
