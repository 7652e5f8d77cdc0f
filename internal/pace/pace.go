// Package pace provides the rate-limiter abstraction used to stay under
// the remote API's request budget.
//
// Pacing policy is behind a small interface so the orchestrator and
// hydrator can be tested with a no-op limiter and so the fixed-interval
// scheduler can be swapped out without touching call sites.
package pace

import (
	"context"
	"time"
)

// Limiter gates successive requests. Wait blocks until the next request
// may be sent, or returns early with the context's error.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Interval is a fixed-interval scheduler: at most one release per period.
// The first Wait returns immediately. Not safe for concurrent use - the
// sync run is single-threaded by design.
type Interval struct {
	period time.Duration
	next   time.Time
}

// NewInterval creates an Interval limiter. A zero or negative period
// disables pacing entirely.
func NewInterval(period time.Duration) *Interval {
	return &Interval{period: period}
}

// Wait blocks until the period since the previous release has elapsed.
func (l *Interval) Wait(ctx context.Context) error {
	if l.period <= 0 {
		return nil
	}

	now := time.Now()
	if now.Before(l.next) {
		timer := time.NewTimer(l.next.Sub(now))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.next = time.Now().Add(l.period)
	return nil
}

// Nop is a limiter that never blocks. Used in tests.
type Nop struct{}

// Wait implements Limiter.
func (Nop) Wait(ctx context.Context) error { return ctx.Err() }
