package txlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_WarnsOnUnsignedAndNoParents(t *testing.T) {
	v := NewValidator()
	tx := NewTransaction("genesis-1", NewHLC("n1", 1), nil, "alice", regOp())

	result, err := v.Validate(tx)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Contains(t, result.Warnings, "Transaction is not signed")
}

func TestValidator_ErrorsOnInvalidHLC(t *testing.T) {
	v := NewValidator()
	tx := NewTransaction("tx1", HLC{}, nil, "alice", regOp())

	result, err := v.Validate(tx)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Invalid HLC timestamp")
}
