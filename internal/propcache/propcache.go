// Package propcache maps human-readable property names to the remote
// system's stable property identifiers.
//
// The mapping is fetched from the schema endpoint exactly once and persisted
// to disk; every later run loads the file and skips the schema call. The
// cache is eventually consistent by design: when the remote schema changes,
// the file must be deleted by hand (or via the schema invalidate command).
// The engine never detects schema drift on its own.
package propcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/taskmirror/taskmirror/internal/remote"
)

// Property is one (name, id) pair. The persisted file holds these in
// schema order so repeated fetches produce identical files.
type Property struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Cache is the persisted property map plus the sub-resource the listing
// endpoint queries. Once written it is never mutated, only deleted.
type Cache struct {
	// SubResourceID is the first queryable sub-resource the schema
	// declared. Listing queries go against it for the life of the cache.
	SubResourceID string `json:"sub_resource_id"`

	Properties []Property `json:"properties"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// PropertyID looks up the stable id for a property name.
func (c *Cache) PropertyID(name string) (string, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p.ID, true
		}
	}
	return "", false
}

// AllowList returns every property id, in cache order. The hydrator sends
// this as the detail fetch field restriction.
func (c *Cache) AllowList() []string {
	ids := make([]string, 0, len(c.Properties))
	for _, p := range c.Properties {
		ids = append(ids, p.ID)
	}
	return ids
}

// SchemaFetcher is the slice of the remote client the cache needs.
type SchemaFetcher interface {
	GetSchema(ctx context.Context) (*remote.Schema, error)
}

// Manager loads, populates, and invalidates the on-disk cache.
type Manager struct {
	path   string
	logger *log.Logger
}

// NewManager creates a Manager for the cache file at path.
// If logger is nil, a default stderr logger is used.
func NewManager(path string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[propcache] ", log.LstdFlags)
	}
	return &Manager{path: path, logger: logger}
}

// Load reads the cache file. The second return is false when no cache
// exists yet.
func (m *Manager) Load() (*Cache, bool, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read property cache: %w", err)
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, false, fmt.Errorf("failed to parse property cache %s: %w", m.path, err)
	}

	return &cache, true, nil
}

// Ensure returns the cached property map, fetching and persisting it from
// the schema endpoint when no cache exists yet.
//
// A schema with no queryable sub-resource is fatal: there is nothing to
// list. A schema with several sub-resources is accepted but logged - only
// the first is ever queried.
func (m *Manager) Ensure(ctx context.Context, fetcher SchemaFetcher) (*Cache, error) {
	cache, ok, err := m.Load()
	if err != nil {
		return nil, err
	}
	if ok {
		return cache, nil
	}

	m.logger.Printf("No property cache at %s, fetching schema", m.path)

	schema, err := fetcher.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schema: %w", err)
	}

	if len(schema.SubResources) == 0 {
		return nil, fmt.Errorf("schema declares no queryable sub-resource")
	}
	if len(schema.SubResources) > 1 {
		m.logger.Printf("WARNING: schema declares %d sub-resources, only %s will be queried",
			len(schema.SubResources), schema.SubResources[0])
	}

	cache = &Cache{
		SubResourceID: schema.SubResources[0],
		FetchedAt:     time.Now().UTC(),
	}
	for _, p := range schema.Properties {
		cache.Properties = append(cache.Properties, Property{Name: p.Name, ID: p.ID})
	}

	if err := m.save(cache); err != nil {
		return nil, err
	}

	m.logger.Printf("Cached %d properties for sub-resource %s",
		len(cache.Properties), cache.SubResourceID)

	return cache, nil
}

// Invalidate deletes the cache file. The next Ensure refetches the schema.
// Invalidating an absent cache is not an error.
func (m *Manager) Invalidate() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove property cache: %w", err)
	}
	return nil
}

// save writes the cache atomically via a temp file rename.
func (m *Manager) save(cache *Cache) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal property cache: %w", err)
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}
