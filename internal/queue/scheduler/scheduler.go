// Package scheduler implements the Scheduler/Reaper: the background pass
// that reclaims jobs whose worker died (or hung) while holding a lock.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/rezkam/queuectl/internal/queue/store"
)

// Reaper periodically reclaims stale locks on a ticker, independent of the
// claim/execute loop that worker processes run.
type Reaper struct {
	store     store.Store
	threshold time.Duration
	interval  time.Duration
}

// New constructs a Reaper. interval controls how often RunOnce fires when
// Run is used; threshold is how long a lock may be held before a job is
// considered abandoned.
func New(s store.Store, threshold, interval time.Duration) *Reaper {
	return &Reaper{store: s, threshold: threshold, interval: interval}
}

// RunOnce reclaims every job whose lock is older than the stale-lock
// threshold, returning how many it reclaimed.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.threshold)
	return r.store.ReapStale(ctx, cutoff)
}

// Run loops RunOnce on a ticker until ctx is cancelled. It is designed to
// run as one goroutine per worker process — ReapStale's BEGIN IMMEDIATE
// transaction makes concurrent reaper invocations safe, so there is no
// need for the TryAcquireExclusiveRun leadership-election dance the
// teacher's reconciliation worker uses for its single-writer Postgres
// advisory lock.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "reaper pass failed", "error", err)
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "reaper reclaimed jobs", "count", n)
			}
		}
	}
}
