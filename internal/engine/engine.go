// Package engine drives the incremental sync run: the page loop, the
// retry policy, and the checkpoint protocol that lets an interrupted run
// resume without losing committed work.
//
// The run is an explicit state machine:
//
//	Idle -> FetchingPage -> Hydrating -> Persisting -> Checkpointing
//	     -> (FetchingPage | Completed) | Failed
//
// Failed is reachable from any state on a non-retryable error; Completed
// implies the cursor file has been deleted. The engine's collaborators sit
// behind narrow interfaces so retry and resume behavior is testable with
// deterministic fakes.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/taskmirror/taskmirror/internal/manifest"
	"github.com/taskmirror/taskmirror/internal/pace"
	"github.com/taskmirror/taskmirror/internal/remote"
)

// State is one phase of the run state machine.
type State int

const (
	StateIdle State = iota
	StateFetchingPage
	StateHydrating
	StatePersisting
	StateCheckpointing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingPage:
		return "fetching_page"
	case StateHydrating:
		return "hydrating"
	case StatePersisting:
		return "persisting"
	case StateCheckpointing:
		return "checkpointing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// PageSource fetches one page of listing results for a cursor.
// An empty cursor requests the first page.
type PageSource interface {
	FetchPage(ctx context.Context, startCursor string) (*remote.Page, error)
}

// Hydrator processes one page's entries and returns the count hydrated.
type Hydrator interface {
	HydrateBatch(ctx context.Context, entries []remote.ListEntry) (int, error)
}

// CursorStore persists the pagination checkpoint.
type CursorStore interface {
	Load() (string, bool, error)
	Save(token string) error
	Clear() error
}

// StoreCleaner empties the local mirror before a fresh full pass.
type StoreCleaner interface {
	Clear(ctx context.Context) error
}

// Options tunes the run.
type Options struct {
	// RetryDelay is the fixed sleep between retries of the same page
	// after a transient error. Zero means the 2s default.
	RetryDelay time.Duration

	// MaxRetries bounds transient retries per page. Zero means 5.
	MaxRetries int

	// ManifestPath, when set, is where the scan manifest is written
	// after a completed pass.
	ManifestPath string

	Logger *log.Logger
}

// Report summarizes one run for the caller.
type Report struct {
	RunID    string
	Resumed  bool
	Pages    int
	Listed   int
	Hydrated int
	Retries  int

	// Completed means the final page was reached and the cursor deleted;
	// the next invocation starts a fresh full resync.
	Completed bool

	Duration time.Duration
}

// Engine owns one logical sync run at a time. It is not safe for
// concurrent Run calls - there is exactly one writer per run by design.
type Engine struct {
	source   PageSource
	hydrator Hydrator
	cursors  CursorStore
	store    StoreCleaner
	pager    pace.Limiter

	retryDelay   time.Duration
	maxRetries   int
	manifestPath string
	logger       *log.Logger

	state State
}

// New creates an Engine. pager paces between pages; pass pace.Nop{} to
// disable inter-page delays (tests do).
func New(source PageSource, hydrator Hydrator, cursors CursorStore, store StoreCleaner, pager pace.Limiter, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = 2 * time.Second
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}

	return &Engine{
		source:       source,
		hydrator:     hydrator,
		cursors:      cursors,
		store:        store,
		pager:        pager,
		retryDelay:   retryDelay,
		maxRetries:   maxRetries,
		manifestPath: opts.ManifestPath,
		logger:       logger,
		state:        StateIdle,
	}
}

// State returns the engine's current phase.
func (e *Engine) State() State {
	return e.state
}

func (e *Engine) setState(next State) {
	if e.state != next {
		e.logger.Printf("state: %s -> %s", e.state, next)
		e.state = next
	}
}

// Run executes one sync pass until the remote signals no further pages,
// a fatal error aborts it, or the context is canceled.
//
// A present cursor resumes the in-progress pass; an absent cursor starts
// fresh and clears the store first. The cursor is advanced only after a
// page's records are fully persisted, and deleted when the final page
// completes - so an aborted run always resumes exactly where it left off.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}

	defer func() {
		report.Duration = time.Since(start)
	}()

	cursorTok, present, err := e.cursors.Load()
	if err != nil {
		e.setState(StateFailed)
		return report, fmt.Errorf("failed to load cursor: %w", err)
	}
	report.Resumed = present

	if present {
		e.logger.Printf("Resuming run %s from saved cursor", report.RunID)
	} else {
		// Fresh pass: clear before the first page so a completed resync
		// can never leave stale rows or orphaned relation links behind.
		e.logger.Printf("Starting fresh run %s, clearing store", report.RunID)
		if err := e.store.Clear(ctx); err != nil {
			e.setState(StateFailed)
			return report, fmt.Errorf("failed to clear store: %w", err)
		}
	}

	var entries []manifest.Entry
	retries := 0

	e.setState(StateFetchingPage)
	for {
		if err := ctx.Err(); err != nil {
			e.setState(StateFailed)
			return report, err
		}

		page, err := e.source.FetchPage(ctx, cursorTok)
		if err != nil {
			if remote.IsTransient(err) && retries < e.maxRetries {
				retries++
				report.Retries++
				e.logger.Printf("Transient error on page %d (attempt %d/%d), retrying same page: %v",
					report.Pages+1, retries, e.maxRetries, err)
				if err := sleepCtx(ctx, e.retryDelay); err != nil {
					e.setState(StateFailed)
					return report, err
				}
				continue
			}
			// Fatal, or retries exhausted. The last checkpoint stays
			// untouched so the next invocation resumes here.
			e.setState(StateFailed)
			return report, fmt.Errorf("page fetch failed: %w", err)
		}
		retries = 0
		report.Pages++
		report.Listed += len(page.Results)

		e.setState(StateHydrating)
		hydrated, err := e.hydrator.HydrateBatch(ctx, page.Results)
		report.Hydrated += hydrated
		if err != nil {
			e.setState(StateFailed)
			return report, fmt.Errorf("hydration failed on page %d: %w", report.Pages, err)
		}

		e.setState(StatePersisting)
		for _, r := range page.Results {
			entries = append(entries, manifest.Entry{ID: r.ID, Title: r.Title})
		}

		e.setState(StateCheckpointing)
		if page.HasMore {
			if page.NextCursor == "" {
				e.setState(StateFailed)
				return report, fmt.Errorf("listing reported more results without a cursor")
			}
			if err := e.cursors.Save(page.NextCursor); err != nil {
				e.setState(StateFailed)
				return report, fmt.Errorf("failed to checkpoint cursor: %w", err)
			}
			cursorTok = page.NextCursor

			if err := e.pager.Wait(ctx); err != nil {
				e.setState(StateFailed)
				return report, err
			}
			e.setState(StateFetchingPage)
			continue
		}

		// Final page: delete the cursor so the next invocation starts a
		// fresh full resync.
		if err := e.cursors.Clear(); err != nil {
			e.setState(StateFailed)
			return report, fmt.Errorf("failed to clear cursor: %w", err)
		}
		break
	}

	if e.manifestPath != "" {
		if err := manifest.Write(e.manifestPath, report.RunID, time.Now(), entries); err != nil {
			// The manifest is audit output, not sync state; a failed write
			// does not undo a completed pass.
			e.logger.Printf("WARNING: failed to write scan manifest: %v", err)
		}
	}

	e.setState(StateCompleted)
	report.Completed = true

	e.logger.Printf("Run %s complete: pages=%d listed=%d hydrated=%d retries=%d",
		report.RunID, report.Pages, report.Listed, report.Hydrated, report.Retries)

	return report, nil
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
