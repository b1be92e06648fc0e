package manager

import (
	"errors"
	"fmt"
)

// ValidationError indicates a caller-supplied EnqueueRequest was malformed.
// It is never retried; the caller must fix the request and resubmit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation returns true if err is a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// DuplicateError indicates Enqueue was called with an id that already
// exists. The existing job is left untouched; the queuectl CLI reports
// the duplicate as an error.
type DuplicateError struct {
	ID string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("job %q already exists", e.ID)
}

// IsDuplicate returns true if err is a DuplicateError.
func IsDuplicate(err error) bool {
	var d DuplicateError
	return errors.As(err, &d)
}

// NotFoundError indicates the referenced job id does not exist.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("job %q not found", e.ID)
}

// IsNotFound returns true if err is a NotFoundError.
func IsNotFound(err error) bool {
	var n NotFoundError
	return errors.As(err, &n)
}

// LockLostError indicates a worker tried to report progress on a job it no
// longer owns — typically because the reaper already reclaimed it as
// stale. The worker must abandon the job; it must not retry the report.
type LockLostError struct {
	ID string
}

func (e LockLostError) Error() string {
	return fmt.Sprintf("lock lost for job %q", e.ID)
}

// IsLockLost returns true if err is a LockLostError.
func IsLockLost(err error) bool {
	var l LockLostError
	return errors.As(err, &l)
}

// NotInDLQError indicates DlqRetry was called on a job that is not
// currently in the dead state.
type NotInDLQError struct {
	ID string
}

func (e NotInDLQError) Error() string {
	return fmt.Sprintf("job %q is not in the dead letter queue", e.ID)
}

// IsNotInDLQ returns true if err is a NotInDLQError.
func IsNotInDLQ(err error) bool {
	var n NotInDLQError
	return errors.As(err, &n)
}
