// Package manager implements the Job Manager: the component that turns
// raw Durable Store primitives into the queue's public operations
// (enqueue, claim, report success/failure, dead-letter retry, status).
package manager

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rezkam/queuectl/internal/ptr"
	"github.com/rezkam/queuectl/internal/queue/config"
	"github.com/rezkam/queuectl/internal/queue/job"
	"github.com/rezkam/queuectl/internal/queue/store"
)

// MetricsRecorder is the subset of internal/queue/metrics.Collector the
// Job Manager needs. Defined here, consumer-side, rather than imported
// from the metrics package directly, so Manager can be tested and used
// without pulling in Prometheus.
type MetricsRecorder interface {
	RecordClaimed()
	RecordCompleted()
	RecordFailed()
	RecordDead()
}

// Manager is the Job Manager. It owns no state of its own beyond the
// Durable Store handle and the Configuration Value set.
type Manager struct {
	store   store.Store
	cfg     config.Config
	metrics MetricsRecorder
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithMetrics attaches a MetricsRecorder that Manager reports job
// transitions to. Omit it to run without metrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// New constructs a Manager over an already-open Store.
func New(s store.Store, cfg config.Config, opts ...Option) *Manager {
	m := &Manager{store: s, cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue validates req and inserts a new pending job. MaxRetries defaults
// to the Configuration Value when req.MaxRetries is nil.
func (m *Manager) Enqueue(ctx context.Context, req job.EnqueueRequest) (*job.Job, error) {
	if req.ID == "" {
		return nil, ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if req.Command == "" {
		return nil, ValidationError{Field: "command", Reason: "must not be empty"}
	}

	maxRetries := m.cfg.DefaultMaxRetries
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			return nil, ValidationError{Field: "max_retries", Reason: "must be >= 0"}
		}
		maxRetries = *req.MaxRetries
	}

	now := time.Now().UTC()
	j := &job.Job{
		ID:         req.ID,
		Command:    req.Command,
		State:      job.Pending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := m.store.Insert(ctx, j); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			return nil, DuplicateError{ID: req.ID}
		}
		return nil, fmt.Errorf("manager: enqueue: %w", err)
	}
	return j, nil
}

// Get returns a single job by id.
func (m *Manager) Get(ctx context.Context, id string) (*job.Job, error) {
	j, err := m.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("manager: get: %w", err)
	}
	return j, nil
}

// List returns jobs, optionally filtered to a single state.
func (m *Manager) List(ctx context.Context, state *job.State) ([]*job.Job, error) {
	jobs, err := m.store.List(ctx, store.ListFilter{State: state})
	if err != nil {
		return nil, fmt.Errorf("manager: list: %w", err)
	}
	return jobs, nil
}

// Claim atomically hands the next eligible job to workerID. It returns
// store.ErrNoneEligible unchanged when the queue is empty — that is the
// normal "poll again" signal, not a failure, so callers should check it
// with errors.Is rather than treat every non-nil error as fatal.
func (m *Manager) Claim(ctx context.Context, workerID string) (*job.Job, error) {
	j, err := m.store.CompareAndClaim(ctx, workerID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNoneEligible) {
			return nil, err
		}
		return nil, fmt.Errorf("manager: claim: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordClaimed()
	}
	return j, nil
}

// ReportSuccess marks a claimed job completed, recording its captured
// output and releasing the lock.
func (m *Manager) ReportSuccess(ctx context.Context, id, workerID, output string) error {
	err := m.store.ConditionalUpdate(ctx, id, workerID, store.UpdateFields{
		State:      job.Completed,
		Output:     ptr.To(output),
		ClearError: true,
		ClearLocks: true,
	})
	if err == nil && m.metrics != nil {
		m.metrics.RecordCompleted()
	}
	return m.translateUpdateErr(id, err)
}

// ReportFailure records a failed attempt. If the job still has retry
// budget it is rescheduled with an exponential-backoff delay
// (backoff_base^attempts seconds); otherwise it is moved to the dead
// letter queue.
func (m *Manager) ReportFailure(ctx context.Context, id, workerID string, execErr error) error {
	j, err := m.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError{ID: id}
	}
	if err != nil {
		return fmt.Errorf("manager: report failure: %w", err)
	}

	newAttempts := j.Attempts + 1
	msg := execErr.Error()

	if newAttempts > j.MaxRetries {
		updErr := m.store.ConditionalUpdate(ctx, id, workerID, store.UpdateFields{
			State:            job.Dead,
			Attempts:         ptr.To(newAttempts),
			Error:            ptr.To(msg),
			ClearNextRetryAt: true,
			ClearLocks:       true,
		})
		if updErr == nil && m.metrics != nil {
			m.metrics.RecordFailed()
			m.metrics.RecordDead()
		}
		return m.translateUpdateErr(id, updErr)
	}

	delay := m.calculateRetryDelay(newAttempts)
	retryAt := time.Now().UTC().Add(delay)
	updErr := m.store.ConditionalUpdate(ctx, id, workerID, store.UpdateFields{
		State:       job.Failed,
		Attempts:    ptr.To(newAttempts),
		Error:       ptr.To(msg),
		NextRetryAt: ptr.To(retryAt),
		ClearLocks:  true,
	})
	if updErr == nil && m.metrics != nil {
		m.metrics.RecordFailed()
	}
	return m.translateUpdateErr(id, updErr)
}

// calculateRetryDelay computes the exponential backoff delay:
// backoff_base^attempts seconds, where attempts is the post-increment
// attempt count. No jitter is added, so the first retry waits
// backoff_base seconds, the second backoff_base^2, and so on. The base
// comes from the Configuration Value so operators can tune the curve
// without a code change.
func (m *Manager) calculateRetryDelay(attempts int) time.Duration {
	backoffSeconds := math.Pow(m.cfg.BackoffBase, float64(attempts))
	return time.Duration(backoffSeconds * float64(time.Second))
}

// Heartbeat records that workerID is alive, for Status's active-worker
// count.
func (m *Manager) Heartbeat(ctx context.Context, workerID string) error {
	if err := m.store.Heartbeat(ctx, workerID, time.Now().UTC()); err != nil {
		return fmt.Errorf("manager: heartbeat: %w", err)
	}
	return nil
}

// activeWorkerWindowMultiplier times the poll interval bounds how recent a
// heartbeat must be to count as an
// active worker in Status — wide enough to absorb one missed poll tick.
const activeWorkerWindowMultiplier = 3

// Status returns the current count of jobs in each state plus the number
// of workers that have heartbeated within the active-worker window.
func (m *Manager) Status(ctx context.Context) (job.StatusCounts, error) {
	counts, err := m.store.CountByState(ctx)
	if err != nil {
		return job.StatusCounts{}, fmt.Errorf("manager: status: %w", err)
	}

	since := time.Now().UTC().Add(-activeWorkerWindowMultiplier * m.cfg.PollInterval)
	active, err := m.store.CountActiveWorkers(ctx, since)
	if err != nil {
		return job.StatusCounts{}, fmt.Errorf("manager: status: %w", err)
	}

	return job.StatusCounts{
		Pending:      counts[job.Pending],
		Processing:   counts[job.Processing],
		Completed:    counts[job.Completed],
		Failed:       counts[job.Failed],
		Dead:         counts[job.Dead],
		ActiveWorker: active,
	}, nil
}

// DlqList returns jobs currently in the dead letter queue.
func (m *Manager) DlqList(ctx context.Context, limit int) ([]*job.DeadLetterJob, error) {
	dlq, err := m.store.ListDLQ(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("manager: dlq list: %w", err)
	}
	return dlq, nil
}

// DlqRetry moves a dead job back to pending with its attempt count reset.
func (m *Manager) DlqRetry(ctx context.Context, id string) error {
	err := m.store.ResetForRetry(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NotFoundError{ID: id}
	case errors.Is(err, store.ErrNotInDLQ):
		return NotInDLQError{ID: id}
	case err != nil:
		return fmt.Errorf("manager: dlq retry: %w", err)
	}
	return nil
}

func (m *Manager) translateUpdateErr(id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return NotFoundError{ID: id}
	case errors.Is(err, store.ErrLockLost):
		return LockLostError{ID: id}
	default:
		return fmt.Errorf("manager: update %q: %w", id, err)
	}
}
