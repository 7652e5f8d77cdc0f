package manifest

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-manifest.jsonl")
	completed := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	entries := []Entry{
		{ID: "rec-3", Title: "Newest"},
		{ID: "rec-2", Title: "Middle"},
		{ID: "rec-1"},
	}

	if err := Write(path, "run-abc", completed, entries); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	header, got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if header.RunID != "run-abc" {
		t.Errorf("expected run id run-abc, got %s", header.RunID)
	}
	if !header.CompletedAt.Equal(completed) {
		t.Errorf("expected completed %v, got %v", completed, header.CompletedAt)
	}
	if header.Entries != 3 {
		t.Errorf("expected 3 entries in header, got %d", header.Entries)
	}

	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	// Listing order must be preserved.
	for i := range entries {
		if got[i] != entries[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, entries[i], got[i])
		}
	}
}

func TestWriteReplacesPreviousManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-manifest.jsonl")

	if err := Write(path, "run-1", time.Now(), []Entry{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(path, "run-2", time.Now(), []Entry{{ID: "c"}}); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	header, entries, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if header.RunID != "run-2" {
		t.Errorf("expected run-2, got %s", header.RunID)
	}
	if len(entries) != 1 || entries[0].ID != "c" {
		t.Errorf("expected replacement entries, got %v", entries)
	}
}

func TestWriteEmptyPass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-manifest.jsonl")

	if err := Write(path, "run-empty", time.Now(), nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	header, entries, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if header.Entries != 0 || len(entries) != 0 {
		t.Errorf("expected empty manifest, got header=%d entries=%d", header.Entries, len(entries))
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, _, err := Read(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected error for missing manifest")
	}
}
