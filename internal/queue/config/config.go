// Package config defines the Configuration Value set that every queuectl
// component is constructed from: defaults, environment overrides, and the
// validation that keeps them coherent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rezkam/queuectl/internal/env"
)

// Config is the full set of Configuration Values read by both cmd/queuectl
// and cmd/queue-worker. All fields have defaults except WorkerTimeout, which
// is left nil (no timeout enforced) unless explicitly set.
type Config struct {
	DBPath              string         `env:"QUEUECTL_DB_PATH"`
	DefaultMaxRetries   int            `env:"QUEUECTL_DEFAULT_MAX_RETRIES"`
	BackoffBase         float64        `env:"QUEUECTL_BACKOFF_BASE"`
	PollInterval        time.Duration  `env:"QUEUECTL_POLL_INTERVAL"`
	WorkerTimeout       *time.Duration `env:"QUEUECTL_WORKER_TIMEOUT"`
	StaleLockThreshold  time.Duration  `env:"QUEUECTL_STALE_LOCK_THRESHOLD"`
	OutputCapBytes      int            `env:"QUEUECTL_OUTPUT_CAP_BYTES"`
	ShutdownGrace       time.Duration  `env:"QUEUECTL_SHUTDOWN_GRACE"`
	MetricsAddr         string         `env:"QUEUECTL_METRICS_ADDR"`
}

// Validate enforces the invariants the rest of the queue relies on. It is
// called automatically by env.Load via the Validator hook.
func (c *Config) Validate() error {
	if c.DefaultMaxRetries < 0 {
		return fmt.Errorf("config: default_max_retries must be >= 0, got %d", c.DefaultMaxRetries)
	}
	if c.BackoffBase <= 1 {
		return fmt.Errorf("config: backoff_base must be > 1, got %f", c.BackoffBase)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be > 0, got %s", c.PollInterval)
	}
	if c.WorkerTimeout != nil && *c.WorkerTimeout <= 0 {
		return fmt.Errorf("config: worker_timeout must be > 0 when set, got %s", *c.WorkerTimeout)
	}
	if c.StaleLockThreshold <= 0 {
		return fmt.Errorf("config: stale_lock_threshold must be > 0, got %s", c.StaleLockThreshold)
	}
	if c.OutputCapBytes <= 0 {
		return fmt.Errorf("config: output_cap_bytes must be > 0, got %d", c.OutputCapBytes)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("config: shutdown_grace must be > 0, got %s", c.ShutdownGrace)
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: db_path must not be empty")
	}
	return nil
}

// Default returns the Configuration Value defaults from the specification,
// before any environment overrides are applied.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DBPath:             filepath.Join(home, ".queuectl", "queuectl.db"),
		DefaultMaxRetries:  3,
		BackoffBase:        2,
		PollInterval:       time.Second,
		WorkerTimeout:      nil,
		StaleLockThreshold: 60 * time.Second,
		OutputCapBytes:     10 * 1024,
		ShutdownGrace:      10 * time.Second,
		MetricsAddr:        "",
	}
}

// Load returns the Configuration Value set with environment overrides
// applied on top of the defaults. Unlike the teacher's zero-value-only
// env.Load consumers, queuectl needs defaults that survive an unset
// variable, so Load seeds the struct from Default() before handing it to
// env.Load — a set env var overwrites the default, an unset one leaves it.
func Load() (Config, error) {
	cfg := Default()
	if err := env.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
