package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rezkam/queuectl/internal/queue/config"
	"github.com/rezkam/queuectl/internal/queue/controlplane"
	"github.com/rezkam/queuectl/internal/queue/manager"
	"github.com/rezkam/queuectl/internal/queue/store"
)

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	dbPath string
	json   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "queuectl",
		Short:         "Inspect and control the durable job queue",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "path to the queue database (default: QUEUECTL_DB_PATH or ~/.queuectl/queuectl.db)")
	cmd.PersistentFlags().BoolVar(&flags.json, "json", false, "emit machine-readable JSON instead of plain text")

	cmd.AddCommand(
		newEnqueueCmd(flags),
		newListCmd(flags),
		newInfoCmd(flags),
		newStatusCmd(flags),
		newDlqCmd(flags),
		newWorkerCmd(flags),
	)

	return cmd
}

// openControlPlane loads the Configuration Value set (applying --db as an
// override), opens the Durable Store, and wires a Control Plane over it.
// The returned closer must be called once the caller is done.
func openControlPlane(ctx context.Context, flags *rootFlags) (*controlplane.ControlPlane, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	mgr := manager.New(s, cfg)
	return controlplane.New(mgr), s.Close, nil
}
