// Package hydrate fetches full record detail for lightweight listing
// entries and persists the mapped results.
//
// Hydration is partial-failure tolerant: one record failing to fetch or
// map is logged and skipped, and the batch continues. Store write failures
// are different - the local database rejecting a fully-mapped record means
// something is wrong with the run itself, so they abort.
package hydrate

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/taskmirror/taskmirror/internal/pace"
	"github.com/taskmirror/taskmirror/internal/propcache"
	"github.com/taskmirror/taskmirror/internal/record"
	"github.com/taskmirror/taskmirror/internal/remote"
)

// DetailFetcher is the slice of the remote client the hydrator needs.
type DetailFetcher interface {
	GetRecord(ctx context.Context, recordID string, fieldIDs []string) ([]byte, error)
}

// RecordWriter is the slice of the store write path the hydrator needs.
type RecordWriter interface {
	UpsertTask(ctx context.Context, rec *record.TaskRecord) error
	InsertRelationLink(ctx context.Context, link record.RelationLink) error
}

// Hydrator turns listing entries into stored task records.
type Hydrator struct {
	fetcher   DetailFetcher
	writer    RecordWriter
	limiter   pace.Limiter
	allowList []string
	logger    *log.Logger

	// now is stubbed in tests for deterministic local timestamps.
	now func() time.Time
}

// New creates a Hydrator. The detail allow-list is derived from the
// property cache; every detail fetch is restricted to it. If logger is
// nil, a default stderr logger is used.
func New(fetcher DetailFetcher, writer RecordWriter, limiter pace.Limiter, props *propcache.Cache, logger *log.Logger) *Hydrator {
	if logger == nil {
		logger = log.New(os.Stderr, "[hydrate] ", log.LstdFlags)
	}
	return &Hydrator{
		fetcher:   fetcher,
		writer:    writer,
		limiter:   limiter,
		allowList: props.AllowList(),
		logger:    logger,
		now:       time.Now,
	}
}

// HydrateBatch processes one page of listing entries in order. Each entry
// is fetched, mapped, and persisted as a single unit before the next entry
// begins. Returns the number of entries successfully hydrated.
//
// A per-entry fetch or mapping failure is logged and skipped. A store
// write failure or context cancellation aborts the batch.
func (h *Hydrator) HydrateBatch(ctx context.Context, entries []remote.ListEntry) (int, error) {
	hydrated := 0

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return hydrated, err
		}

		if err := h.hydrateOne(ctx, entry); err != nil {
			if isAbort(err) {
				return hydrated, err
			}
			h.logger.Printf("WARNING: skipping record %s: %v", entry.ID, err)
			continue
		}

		hydrated++

		if err := h.limiter.Wait(ctx); err != nil {
			return hydrated, err
		}
	}

	return hydrated, nil
}

// abortError marks failures that must stop the batch instead of being
// skipped: store writes and cancellation.
type abortError struct{ err error }

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

func isAbort(err error) bool {
	_, ok := err.(*abortError)
	return ok || err == context.Canceled || err == context.DeadlineExceeded
}

// hydrateOne fetches, maps, and persists a single entry.
func (h *Hydrator) hydrateOne(ctx context.Context, entry remote.ListEntry) error {
	payload, err := h.fetcher.GetRecord(ctx, entry.ID, h.allowList)
	if err != nil {
		if ctx.Err() != nil {
			return &abortError{err: ctx.Err()}
		}
		return fmt.Errorf("detail fetch failed: %w", err)
	}

	rec, links, err := record.FromDetail(payload, h.now())
	if err != nil {
		return fmt.Errorf("mapping failed: %w", err)
	}

	// The listing title is a fallback for records whose detail payload
	// carries no title property.
	if rec.Title == "" {
		rec.Title = entry.Title
	}

	if err := h.writer.UpsertTask(ctx, rec); err != nil {
		return &abortError{err: fmt.Errorf("store upsert failed: %w", err)}
	}

	for _, link := range links {
		if err := h.writer.InsertRelationLink(ctx, link); err != nil {
			return &abortError{err: fmt.Errorf("store link insert failed: %w", err)}
		}
	}

	return nil
}
