// Package store implements the Durable Store: the single source of truth
// for job state, backed by a local SQLite database. All mutations are
// expressed as conditional, ownership-checked updates so that concurrent
// worker processes can never double-execute a job.
package store

import (
	"context"
	"time"

	"github.com/rezkam/queuectl/internal/queue/job"
)

// ListFilter narrows List to jobs in a single state. A nil State returns
// jobs in every state.
type ListFilter struct {
	State *job.State
	Limit int
}

// UpdateFields describes a conditional_update write. State is always
// applied; every other field is written only when the corresponding
// pointer is non-nil (or, for NextRetryAt, when ClearNextRetryAt is set) —
// a field the caller leaves nil is left untouched in the row.
type UpdateFields struct {
	State            job.State
	Attempts         *int
	Output           *string
	Error            *string
	ClearError       bool
	NextRetryAt      *time.Time
	ClearNextRetryAt bool
	ClearLocks       bool
}

// Store is the Durable Store abstraction. Every method that mutates a job
// row does so inside a single transaction so that readers never observe a
// torn write.
type Store interface {
	// Insert persists a new job in the pending state. Returns ErrDuplicateID
	// if id already exists.
	Insert(ctx context.Context, j *job.Job) error

	// Get returns the job with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*job.Job, error)

	// List returns jobs matching filter, most recently created first.
	List(ctx context.Context, filter ListFilter) ([]*job.Job, error)

	// CompareAndClaim atomically selects one eligible job — pending, or
	// failed with NextRetryAt <= now — and transitions it to processing
	// under ownerID. Returns ErrNoneEligible if no row qualifies.
	CompareAndClaim(ctx context.Context, ownerID string, now time.Time) (*job.Job, error)

	// ConditionalUpdate applies fields to the job with the given id only if
	// its current locked_by equals expectedOwner. Returns ErrLockLost if
	// ownership has changed (e.g. reclaimed by the reaper) and ErrNotFound
	// if the id doesn't exist.
	ConditionalUpdate(ctx context.Context, id string, expectedOwner string, fields UpdateFields) error

	// ListDLQ returns jobs currently in the dead state, most recently dead
	// first, capped at limit (0 means unlimited).
	ListDLQ(ctx context.Context, limit int) ([]*job.DeadLetterJob, error)

	// ResetForRetry moves a dead job back to pending with attempts reset to
	// zero. Returns ErrNotInDLQ if the job isn't currently dead.
	ResetForRetry(ctx context.Context, id string) error

	// ReapStale reclaims processing jobs whose locked_at is older than
	// cutoff: it clears their lock and moves them to failed with an
	// immediate retry, leaving attempts untouched — a stale lock means the
	// worker died, not that the job itself failed, so it must not count
	// against the job's retry budget. It returns the number of jobs
	// reclaimed.
	ReapStale(ctx context.Context, cutoff time.Time) (int, error)

	// CountByState returns the number of jobs in each state.
	CountByState(ctx context.Context) (map[job.State]int, error)

	// Heartbeat upserts a worker's liveness row, used to answer Status's
	// active-worker count.
	Heartbeat(ctx context.Context, workerID string, now time.Time) error

	// CountActiveWorkers returns the number of workers whose last
	// heartbeat is at or after since.
	CountActiveWorkers(ctx context.Context, since time.Time) (int, error)

	// Close releases the underlying database handle.
	Close() error
}
