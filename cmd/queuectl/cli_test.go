package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the command tree with args against the database at
// dbPath and returns stdout.
func runCLI(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--db", dbPath}, args...))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCLI_EnqueueListInfoStatus(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queuectl.db")

	enqueueOut := runCLI(t, dbPath, "enqueue", "job-1", "echo hi")
	assert.Contains(t, enqueueOut, "enqueued job-1")

	listOut := runCLI(t, dbPath, "list")
	assert.Contains(t, listOut, "job-1")
	assert.Contains(t, listOut, "pending")

	infoOut := runCLI(t, dbPath, "info", "job-1")
	assert.Contains(t, infoOut, "id:           job-1")
	assert.Contains(t, infoOut, "command:      echo hi")

	statusOut := runCLI(t, dbPath, "status")
	assert.Contains(t, statusOut, "pending:     1")
}

func TestCLI_EnqueueDuplicateFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queuectl.db")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--db", dbPath, "enqueue", "job-1", "echo hi"})
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	cmd2 := newRootCmd()
	cmd2.SetArgs([]string{"--db", dbPath, "enqueue", "job-1", "echo hi"})
	cmd2.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd2.Execute())
}

func TestCLI_DlqListAndRetry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queuectl.db")

	runCLI(t, dbPath, "enqueue", "job-1", "false", "--max-retries", "0")

	// Claim and fail it directly through the store so it lands in the DLQ
	// without needing a real worker process in this test.
	claimAndFail(t, dbPath)

	dlqOut := runCLI(t, dbPath, "dlq", "list")
	assert.Contains(t, dlqOut, "job-1")

	retryOut := runCLI(t, dbPath, "dlq", "retry", "job-1")
	assert.Contains(t, retryOut, "requeued job-1")

	infoOut := runCLI(t, dbPath, "info", "job-1")
	assert.Contains(t, infoOut, "state:        pending")
}
