package workerrt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_Success(t *testing.T) {
	out, err := runCommand(context.Background(), "echo hello", nil, 1024)
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestRunCommand_NonZeroExit(t *testing.T) {
	_, err := runCommand(context.Background(), "exit 1", nil, 1024)
	require.Error(t, err)
}

func TestRunCommand_Timeout(t *testing.T) {
	timeout := 50 * time.Millisecond
	_, err := runCommand(context.Background(), "sleep 5", &timeout, 1024)
	require.Error(t, err)
}

func TestRunCommand_OutputTruncated(t *testing.T) {
	out, err := runCommand(context.Background(), "yes | head -c 1000", nil, 16)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 16+len("\n... (output truncated)"))
	assert.Contains(t, out, "truncated")
}

func TestBoundedBuffer_WriteUnderLimit(t *testing.T) {
	b := &boundedBuffer{limit: 100}
	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", b.String())
}
