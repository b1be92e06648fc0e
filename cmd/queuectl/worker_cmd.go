package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rezkam/queuectl/internal/queue/config"
	"github.com/rezkam/queuectl/internal/queue/manager"
	"github.com/rezkam/queuectl/internal/queue/metrics"
	"github.com/rezkam/queuectl/internal/queue/scheduler"
	"github.com/rezkam/queuectl/internal/queue/store"
	"github.com/rezkam/queuectl/internal/queue/workerrt"
)

// newWorkerCmd runs a Worker Runtime in-process, for single-binary smoke
// testing. It wires the same workerrt.Runtime that cmd/queue-worker runs
// as its own process; cmd/queue-worker remains the supported way to run a
// worker fleet in production.
func newWorkerCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run an in-process worker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if flags.dbPath != "" {
				cfg.DBPath = flags.dbPath
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			// ctx is cancelled on the first SIGINT/SIGTERM, starting a
			// graceful drain; a second signal closes forceKill, telling the
			// runtime to kill in-flight jobs immediately instead of waiting
			// out ShutdownGrace.
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

			fmt.Fprintf(cmd.OutOrStdout(), "worker %s starting against %s\n", workerID, cfg.DBPath)
			return rt.Run(ctx, forceKill)
		},
	}

	return cmd
}
