package propcache

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskmirror/taskmirror/internal/remote"
)

// fakeFetcher counts schema calls and returns a canned schema.
type fakeFetcher struct {
	schema *remote.Schema
	err    error
	calls  int
}

func (f *fakeFetcher) GetSchema(ctx context.Context) (*remote.Schema, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.schema, nil
}

func testSchema() *remote.Schema {
	return &remote.Schema{
		Properties: []remote.SchemaProperty{
			{Name: "Name", ID: "p-title"},
			{Name: "Project", ID: "p-rel"},
			{Name: "Status", ID: "p-status"},
		},
		SubResources: []string{"sub-1"},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "properties.json")
	return NewManager(path, log.New(os.Stderr, "[test] ", 0))
}

func TestEnsureFetchesOnceAndPersists(t *testing.T) {
	m := newTestManager(t)
	fetcher := &fakeFetcher{schema: testSchema()}

	cache, err := m.Ensure(context.Background(), fetcher)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("expected 1 schema call, got %d", fetcher.calls)
	}
	if cache.SubResourceID != "sub-1" {
		t.Errorf("expected sub-1, got %s", cache.SubResourceID)
	}

	// Second Ensure must load from disk and skip the schema call.
	cache2, err := m.Ensure(context.Background(), fetcher)
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("expected cached load, got %d schema calls", fetcher.calls)
	}
	if len(cache2.Properties) != len(cache.Properties) {
		t.Errorf("cache round-trip lost properties: %d vs %d",
			len(cache2.Properties), len(cache.Properties))
	}
}

func TestPropertyLookupAndAllowList(t *testing.T) {
	m := newTestManager(t)
	cache, err := m.Ensure(context.Background(), &fakeFetcher{schema: testSchema()})
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	id, ok := cache.PropertyID("Project")
	if !ok || id != "p-rel" {
		t.Errorf("PropertyID(Project) = %q, %v", id, ok)
	}
	if _, ok := cache.PropertyID("Nope"); ok {
		t.Error("expected miss for unknown property")
	}

	allow := cache.AllowList()
	want := []string{"p-title", "p-rel", "p-status"}
	if len(allow) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(allow))
	}
	for i := range want {
		if allow[i] != want[i] {
			t.Errorf("allow list[%d] = %s, want %s", i, allow[i], want[i])
		}
	}
}

func TestEnsureFailsWithoutSubResources(t *testing.T) {
	m := newTestManager(t)
	fetcher := &fakeFetcher{schema: &remote.Schema{
		Properties: []remote.SchemaProperty{{Name: "Name", ID: "p1"}},
	}}

	if _, err := m.Ensure(context.Background(), fetcher); err == nil {
		t.Fatal("expected error for schema with no sub-resources")
	}

	// The failure must not leave a cache file behind.
	if _, ok, _ := m.Load(); ok {
		t.Error("cache file written despite fatal schema")
	}
}

func TestEnsurePropagatesFetchError(t *testing.T) {
	m := newTestManager(t)
	fetcher := &fakeFetcher{err: fmt.Errorf("boom")}

	if _, err := m.Ensure(context.Background(), fetcher); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}

func TestInvalidate(t *testing.T) {
	m := newTestManager(t)
	fetcher := &fakeFetcher{schema: testSchema()}

	if _, err := m.Ensure(context.Background(), fetcher); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if err := m.Invalidate(); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	// Next Ensure refetches.
	if _, err := m.Ensure(context.Background(), fetcher); err != nil {
		t.Fatalf("Ensure after invalidate failed: %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("expected refetch after invalidate, got %d calls", fetcher.calls)
	}

	// Invalidating a missing cache is fine.
	if err := m.Invalidate(); err != nil {
		t.Fatalf("Invalidate on fresh state failed: %v", err)
	}
	if err := m.Invalidate(); err != nil {
		t.Errorf("repeated Invalidate failed: %v", err)
	}
}
