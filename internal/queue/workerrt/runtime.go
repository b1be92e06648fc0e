// Package workerrt implements the Worker Runtime: the process loop that
// claims jobs from the Job Manager, executes their command, and reports
// the outcome back.
package workerrt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/queuectl/internal/queue/config"
	"github.com/rezkam/queuectl/internal/queue/job"
	"github.com/rezkam/queuectl/internal/queue/manager"
	"github.com/rezkam/queuectl/internal/queue/scheduler"
	"github.com/rezkam/queuectl/internal/queue/store"
)

// Identity builds a worker id from the host name plus a random suffix, so
// multiple worker processes on the same machine (or container replicas
// sharing a hostname) never collide in the Durable Store's locked_by
// column. Both cmd/queue-worker and queuectl worker use it.
func Identity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// Runtime is the Worker Runtime. One Runtime claims and executes jobs
// serially — operators scale throughput by running more worker processes,
// each with its own Runtime, against the same database.
type Runtime struct {
	id      string
	manager *manager.Manager
	reaper  *scheduler.Reaper
	cfg     config.Config

	wg       sync.WaitGroup
	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

// New constructs a Runtime identified by id (typically hostname plus a
// random suffix, so logs and the Durable Store's locked_by column can tell
// worker processes apart).
func New(id string, m *manager.Manager, r *scheduler.Reaper, cfg config.Config) *Runtime {
	return &Runtime{id: id, manager: m, reaper: r, cfg: cfg, inFlight: make(map[string]context.CancelFunc)}
}

// Run drives the claim/execute/report loop until ctx is cancelled. On
// cancellation it stops claiming new work and waits up to ShutdownGrace
// for any job already in flight to finish before returning. If forceKill
// fires before the grace period elapses — a second shutdown signal, per
// the caller's own signal handling — in-flight jobs are killed and
// reported as failed immediately instead of being waited out. forceKill
// may be nil, in which case only the grace-period timeout applies.
func (rt *Runtime) Run(ctx context.Context, forceKill <-chan struct{}) error {
	slog.InfoContext(ctx, "worker runtime started", "worker_id", rt.id, "poll_interval", rt.cfg.PollInterval)

	go rt.reaper.Run(ctx)
	go rt.runHeartbeat(ctx)

	ticker := time.NewTicker(rt.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "worker runtime shutting down, draining in-flight jobs", "worker_id", rt.id)
			return rt.drain(ctx, forceKill)
		case <-ticker.C:
			rt.pollOnce(ctx)
		}
	}
}

func (rt *Runtime) drain(ctx context.Context, forceKill <-chan struct{}) error {
	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-forceKill:
		slog.WarnContext(ctx, "second shutdown signal received, killing in-flight jobs", "worker_id", rt.id)
		rt.killInFlight(ctx)
		<-done
		return errors.New("workerrt: forced shutdown, in-flight jobs killed")
	case <-time.After(rt.cfg.ShutdownGrace):
		slog.WarnContext(ctx, "shutdown grace period elapsed, killing in-flight jobs", "worker_id", rt.id)
		rt.killInFlight(ctx)
		<-done
		return errors.New("workerrt: shutdown grace period elapsed, in-flight jobs killed")
	}
}

// killInFlight cancels every currently-running job's context, which tears
// down its child process (see runCommand); execute's normal failure path
// then reports each one as failed.
func (rt *Runtime) killInFlight(ctx context.Context) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for id, cancel := range rt.inFlight {
		slog.WarnContext(ctx, "force-killing in-flight job", "worker_id", rt.id, "job_id", id)
		cancel()
	}
}

func (rt *Runtime) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(rt.cfg.PollInterval)
	defer ticker.Stop()

	if err := rt.manager.Heartbeat(ctx, rt.id); err != nil {
		slog.WarnContext(ctx, "heartbeat failed", "worker_id", rt.id, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rt.manager.Heartbeat(ctx, rt.id); err != nil {
				slog.WarnContext(ctx, "heartbeat failed", "worker_id", rt.id, "error", err)
			}
		}
	}
}

// pollOnce tries to claim a single job and, if one is available, runs it
// in its own goroutine so the Run loop stays responsive to shutdown rather
// than blocking on the child process. It makes no claim while a previously
// claimed job is still in flight, so jobs are executed one at a time.
func (rt *Runtime) pollOnce(ctx context.Context) {
	rt.mu.Lock()
	busy := len(rt.inFlight) > 0
	rt.mu.Unlock()
	if busy {
		return
	}

	j, err := rt.manager.Claim(ctx, rt.id)
	if errors.Is(err, store.ErrNoneEligible) {
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "claim failed", "worker_id", rt.id, "error", err)
		return
	}

	slog.InfoContext(ctx, "claimed job", "worker_id", rt.id, "job_id", j.ID, "command", j.Command)

	// Derive from context.Background rather than the caller's ctx: once
	// claimed, a job should finish (success, failure, or its own
	// worker_timeout) rather than be cut short by process shutdown —
	// that's what ShutdownGrace's drain window, and the force-kill escalation
	// above it, are for. jobCtx's own cancel is registered in rt.inFlight so
	// killInFlight can still tear the job down on a forced shutdown.
	jobCtx, cancel := context.WithCancel(context.Background())
	rt.mu.Lock()
	rt.inFlight[j.ID] = cancel
	rt.mu.Unlock()

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		defer func() {
			rt.mu.Lock()
			delete(rt.inFlight, j.ID)
			rt.mu.Unlock()
			cancel()
		}()
		rt.execute(jobCtx, j)
	}()
}

func (rt *Runtime) execute(ctx context.Context, j *job.Job) {
	output, err := runCommand(ctx, j.Command, rt.cfg.WorkerTimeout, rt.cfg.OutputCapBytes)
	// A force-killed job's ctx is already cancelled; the outcome is still
	// reported, so the store calls run on a context that is not.
	reportCtx := context.WithoutCancel(ctx)
	if err != nil {
		slog.WarnContext(ctx, "job execution failed", "worker_id", rt.id, "job_id", j.ID, "error", err)
		// job.Error must carry the captured diagnostic (combined
		// stdout/stderr), not just the bare exec error — the exec error
		// alone ("exit status 1") tells an operator nothing about why.
		diagErr := err
		if output != "" {
			diagErr = fmt.Errorf("%w: %s", err, output)
		}
		if reportErr := rt.manager.ReportFailure(reportCtx, j.ID, rt.id, diagErr); reportErr != nil {
			rt.logReportErr(ctx, j.ID, reportErr)
		}
		return
	}

	if reportErr := rt.manager.ReportSuccess(reportCtx, j.ID, rt.id, output); reportErr != nil {
		rt.logReportErr(ctx, j.ID, reportErr)
		return
	}
	slog.InfoContext(ctx, "job completed", "worker_id", rt.id, "job_id", j.ID)
}

func (rt *Runtime) logReportErr(ctx context.Context, jobID string, err error) {
	if manager.IsLockLost(err) {
		// The reaper already reclaimed this job as stale; another worker
		// owns it now, so there is nothing further for us to do.
		slog.WarnContext(ctx, "lost job ownership while reporting outcome", "worker_id", rt.id, "job_id", jobID)
		return
	}
	slog.ErrorContext(ctx, "failed to report job outcome", "worker_id", rt.id, "job_id", jobID, "error", err)
}
