package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/graph"
)

func TestNewDefaults(t *testing.T) {
	qc := New("default")
	assert.NotEmpty(t, qc.RequestID)
	assert.Equal(t, "default", qc.Database)
	assert.Equal(t, DefaultTimeout, qc.Timeout)
	assert.Empty(t, qc.Principal())
}

func TestBuilderChain(t *testing.T) {
	qc := New("graphdb").
		WithPrincipal("alice").
		WithTimeout(5 * time.Second).
		WithParameter("min", graph.IntValue(10))

	assert.Equal(t, "alice", qc.Principal())
	assert.Equal(t, 5*time.Second, qc.Timeout)
	assert.Equal(t, graph.IntValue(10), qc.Parameters["min"])
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	qc := New("d").WithTimeout(0)
	assert.Equal(t, DefaultTimeout, qc.Timeout)
}

func TestDeadlineExpires(t *testing.T) {
	qc := New("d").WithTimeout(10 * time.Millisecond)
	ctx, cancel := qc.Deadline(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 50*time.Millisecond)
}
