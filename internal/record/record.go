// Package record defines the canonical shapes stored in the local mirror:
// task records and the relation edges between them.
//
// A TaskRecord keeps the raw remote detail payload verbatim. The stored
// payload is the contract with downstream readers - it must be a faithful
// snapshot of the remote detail response at hydration time. All mapping
// here is extraction, never rewriting.
package record

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Sync status values for a stored task row.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
)

// TaskRecord is one mirrored task row.
type TaskRecord struct {
	// ClientID is the local row identity, assigned on first insert and
	// stable across re-syncs.
	ClientID string

	// RemoteID is the canonical remote identifier. Upserts are keyed by it.
	RemoteID string

	// Title is the display title extracted from the payload (may be empty
	// when the remote record has no title property).
	Title string

	// Payload is the raw detail response, stored byte-for-byte.
	Payload []byte

	SyncStatus       string
	LocalModifiedAt  time.Time
	RemoteModifiedAt time.Time
}

// Validate checks the fields required before a database write.
func (r *TaskRecord) Validate() error {
	if r.RemoteID == "" {
		return fmt.Errorf("remote id is required")
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if r.SyncStatus == "" {
		return fmt.Errorf("sync status is required")
	}
	return nil
}

// RelationLink is a directed edge from a task to a related record.
// The pair is unique in the store; duplicate inserts are ignored.
type RelationLink struct {
	TaskID    string
	RelatedID string
}

// FromDetail maps a raw detail payload into a TaskRecord plus the relation
// edges found in any relation-typed properties.
//
// The payload is kept verbatim; only the id, last-modified timestamp, title,
// and relation ids are extracted. Returns an error when the payload has no
// usable id or timestamp - callers treat that as a per-record failure.
func FromDetail(payload []byte, now time.Time) (*TaskRecord, []RelationLink, error) {
	if !gjson.ValidBytes(payload) {
		return nil, nil, fmt.Errorf("detail payload is not valid JSON")
	}

	doc := gjson.ParseBytes(payload)

	id := doc.Get("id").String()
	if id == "" {
		return nil, nil, fmt.Errorf("detail payload has no id")
	}

	modified := doc.Get("last_modified").String()
	remoteModified, err := time.Parse(time.RFC3339, modified)
	if err != nil {
		return nil, nil, fmt.Errorf("detail payload for %s has bad last_modified %q: %w", id, modified, err)
	}

	rec := &TaskRecord{
		RemoteID:         id,
		Title:            extractTitle(doc),
		Payload:          payload,
		SyncStatus:       StatusSynced,
		LocalModifiedAt:  now,
		RemoteModifiedAt: remoteModified,
	}

	return rec, extractRelations(id, doc), nil
}

// extractTitle pulls plain text out of the first title-typed property.
func extractTitle(doc gjson.Result) string {
	var title string
	doc.Get("properties").ForEach(func(_, prop gjson.Result) bool {
		if prop.Get("type").String() != "title" {
			return true
		}
		var text string
		prop.Get("title").ForEach(func(_, span gjson.Result) bool {
			text += span.Get("plain_text").String()
			return true
		})
		title = text
		return false
	})
	return title
}

// extractRelations collects related record ids from every relation-typed
// property. Duplicate targets within one payload collapse to a single edge.
func extractRelations(taskID string, doc gjson.Result) []RelationLink {
	seen := make(map[string]bool)
	var links []RelationLink

	doc.Get("properties").ForEach(func(_, prop gjson.Result) bool {
		if prop.Get("type").String() != "relation" {
			return true
		}
		prop.Get("relation").ForEach(func(_, rel gjson.Result) bool {
			related := rel.Get("id").String()
			if related == "" || seen[related] {
				return true
			}
			seen[related] = true
			links = append(links, RelationLink{TaskID: taskID, RelatedID: related})
			return true
		})
		return true
	})

	return links
}
