// Package controlplane implements the Control Plane: the thin facade that
// cmd/queuectl's CLI commands call into. It adds no behavior of its own
// beyond delegating to the Job Manager — its purpose is to give the CLI a
// single, stable import instead of reaching into internal/queue/manager
// and internal/queue/store directly.
package controlplane

import (
	"context"

	"github.com/rezkam/queuectl/internal/queue/job"
	"github.com/rezkam/queuectl/internal/queue/manager"
)

// ControlPlane is the entry point used by cmd/queuectl.
type ControlPlane struct {
	manager *manager.Manager
}

// New constructs a ControlPlane over an already-constructed Manager.
func New(m *manager.Manager) *ControlPlane {
	return &ControlPlane{manager: m}
}

// Enqueue submits a new job.
func (c *ControlPlane) Enqueue(ctx context.Context, req job.EnqueueRequest) (*job.Job, error) {
	return c.manager.Enqueue(ctx, req)
}

// Info returns a single job's full record.
func (c *ControlPlane) Info(ctx context.Context, id string) (*job.Job, error) {
	return c.manager.Get(ctx, id)
}

// List returns jobs, optionally filtered to a single state.
func (c *ControlPlane) List(ctx context.Context, state *job.State) ([]*job.Job, error) {
	return c.manager.List(ctx, state)
}

// Status returns the aggregate job and worker counts.
func (c *ControlPlane) Status(ctx context.Context) (job.StatusCounts, error) {
	return c.manager.Status(ctx)
}

// DlqList returns jobs currently in the dead letter queue.
func (c *ControlPlane) DlqList(ctx context.Context, limit int) ([]*job.DeadLetterJob, error) {
	return c.manager.DlqList(ctx, limit)
}

// DlqRetry moves a dead job back to pending.
func (c *ControlPlane) DlqRetry(ctx context.Context, id string) error {
	return c.manager.DlqRetry(ctx, id)
}
