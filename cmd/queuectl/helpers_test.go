package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rezkam/queuectl/internal/queue/config"
	"github.com/rezkam/queuectl/internal/queue/manager"
	"github.com/rezkam/queuectl/internal/queue/store"
)

// claimAndFail claims the single pending job in dbPath and reports a
// failure for it, driving it straight to the dead letter queue. It exists
// so DLQ-focused CLI tests don't need a real worker process.
func claimAndFail(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, dbPath)
	require.NoError(t, err)
	defer s.Close()

	mgr := manager.New(s, config.Default())

	j, err := mgr.Claim(ctx, "test-worker")
	require.NoError(t, err)

	require.NoError(t, mgr.ReportFailure(ctx, j.ID, "test-worker", errors.New("boom")))
}
