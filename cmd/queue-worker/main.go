// Command queue-worker runs the Worker Runtime: it claims pending jobs
// from the shared queuectl database, executes each job's command, and
// reports the outcome back until the process receives a shutdown signal.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rezkam/queuectl/internal/queue/config"
	"github.com/rezkam/queuectl/internal/queue/manager"
	"github.com/rezkam/queuectl/internal/queue/metrics"
	"github.com/rezkam/queuectl/internal/queue/scheduler"
	"github.com/rezkam/queuectl/internal/queue/store"
	"github.com/rezkam/queuectl/internal/queue/workerrt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "queue-worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ctx is cancelled on the first SIGINT/SIGTERM, starting a graceful
	// drain; a second signal closes forceKill, telling the runtime to kill
	// in-flight jobs immediately instead of waiting out ShutdownGrace.
	ctx, forceKill, stop := workerrt.SignalContext()
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	workerID := workerrt.Identity()

	var mgrOpts []manager.Option
	if cfg.MetricsAddr != "" {
		collector := metrics.NewCollector()
		mgrOpts = append(mgrOpts, manager.WithMetrics(collector))
		go func() {
			slog.InfoContext(ctx, "metrics endpoint listening", "addr", cfg.MetricsAddr)
			if err := collector.Serve(cfg.MetricsAddr); err != nil {
				slog.ErrorContext(ctx, "metrics server stopped", "error", err)
			}
		}()
	}

	mgr := manager.New(s, cfg, mgrOpts...)
	reaper := scheduler.New(s, cfg.StaleLockThreshold, cfg.PollInterval)
	rt := workerrt.New(workerID, mgr, reaper, cfg)

	slog.InfoContext(ctx, "queue-worker starting", "worker_id", workerID, "db_path", cfg.DBPath)
	return rt.Run(ctx, forceKill)
}
