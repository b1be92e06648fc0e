package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	require.NotNil(t, c)
	assert.NotNil(t, c.jobsClaimed)
	assert.NotNil(t, c.jobsCompleted)
	assert.NotNil(t, c.jobsFailed)
	assert.NotNil(t, c.jobsDead)
	assert.NotNil(t, c.pollDuration)
}

func TestCollector_RecordCounters(t *testing.T) {
	c := NewCollector()

	c.RecordClaimed()
	c.RecordClaimed()
	c.RecordCompleted()
	c.RecordFailed()
	c.RecordDead()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.jobsClaimed))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobsCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobsFailed))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobsDead))
}

func TestCollector_ObservePollDuration(t *testing.T) {
	c := NewCollector()
	assert.NotPanics(t, func() {
		c.ObservePollDuration(0.05)
	})
}
