package store

import "errors"

// Sentinel errors returned by the Durable Store. Callers use errors.Is to
// classify them; see internal/queue/manager/errors.go for how the Job
// Manager turns these into caller-facing error kinds.
var (
	// ErrDuplicateID is returned by Insert when id already exists.
	ErrDuplicateID = errors.New("store: duplicate job id")

	// ErrNotFound is returned by Get/ConditionalUpdate/ResetForRetry when
	// no row matches the given id.
	ErrNotFound = errors.New("store: job not found")

	// ErrNoneEligible is returned by CompareAndClaim when no row matches
	// the eligibility predicate. It is not a failure — callers poll again.
	ErrNoneEligible = errors.New("store: no eligible job")

	// ErrLockLost is returned by ConditionalUpdate when the row's current
	// locked_by no longer matches the caller's expected owner.
	ErrLockLost = errors.New("store: lock lost")

	// ErrNotInDLQ is returned by ResetForRetry when the job is not
	// currently in the dead state.
	ErrNotInDLQ = errors.New("store: job not in dead letter queue")
)
