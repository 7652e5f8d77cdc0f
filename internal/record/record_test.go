package record

import (
	"testing"
	"time"
)

const detailFixture = `{
	"id": "rec-100",
	"last_modified": "2026-02-11T09:30:00Z",
	"properties": {
		"Name": {
			"id": "title",
			"type": "title",
			"title": [
				{"plain_text": "Ship the "},
				{"plain_text": "release"}
			]
		},
		"Project": {
			"id": "prj1",
			"type": "relation",
			"relation": [
				{"id": "rec-200"},
				{"id": "rec-201"}
			]
		},
		"Blocked by": {
			"id": "blk1",
			"type": "relation",
			"relation": [
				{"id": "rec-200"}
			]
		},
		"Done": {
			"id": "dn",
			"type": "checkbox",
			"checkbox": false
		}
	}
}`

func TestFromDetail(t *testing.T) {
	now := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)

	rec, links, err := FromDetail([]byte(detailFixture), now)
	if err != nil {
		t.Fatalf("FromDetail failed: %v", err)
	}

	if rec.RemoteID != "rec-100" {
		t.Errorf("expected remote id rec-100, got %s", rec.RemoteID)
	}
	if rec.Title != "Ship the release" {
		t.Errorf("expected joined title, got %q", rec.Title)
	}
	if rec.SyncStatus != StatusSynced {
		t.Errorf("expected status %s, got %s", StatusSynced, rec.SyncStatus)
	}
	if !rec.LocalModifiedAt.Equal(now) {
		t.Errorf("expected local modified %v, got %v", now, rec.LocalModifiedAt)
	}

	wantRemote := time.Date(2026, 2, 11, 9, 30, 0, 0, time.UTC)
	if !rec.RemoteModifiedAt.Equal(wantRemote) {
		t.Errorf("expected remote modified %v, got %v", wantRemote, rec.RemoteModifiedAt)
	}

	if string(rec.Payload) != detailFixture {
		t.Error("payload was not preserved verbatim")
	}

	// rec-200 appears in two relation properties but must yield one edge.
	want := map[string]bool{"rec-200": true, "rec-201": true}
	if len(links) != len(want) {
		t.Fatalf("expected %d relation links, got %d: %v", len(want), len(links), links)
	}
	for _, l := range links {
		if l.TaskID != "rec-100" {
			t.Errorf("link has wrong task id: %s", l.TaskID)
		}
		if !want[l.RelatedID] {
			t.Errorf("unexpected related id %s", l.RelatedID)
		}
	}
}

func TestFromDetailRejectsBadPayloads(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{"id": "x"`},
		{"missing id", `{"last_modified": "2026-02-11T09:30:00Z"}`},
		{"missing last_modified", `{"id": "rec-1"}`},
		{"bad timestamp", `{"id": "rec-1", "last_modified": "yesterday"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := FromDetail([]byte(tc.payload), now); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestFromDetailNoRelations(t *testing.T) {
	payload := `{"id": "rec-1", "last_modified": "2026-02-11T09:30:00Z", "properties": {}}`

	rec, links, err := FromDetail([]byte(payload), time.Now())
	if err != nil {
		t.Fatalf("FromDetail failed: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
	if rec.Title != "" {
		t.Errorf("expected empty title, got %q", rec.Title)
	}
}

func TestValidate(t *testing.T) {
	rec := &TaskRecord{
		RemoteID:   "rec-1",
		Payload:    []byte(`{}`),
		SyncStatus: StatusSynced,
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}

	rec.RemoteID = ""
	if err := rec.Validate(); err == nil {
		t.Error("expected error for missing remote id")
	}
}
