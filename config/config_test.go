package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	c := Default()
	c.Policy.Mode = "maybe"
	c.Replication.Factor = 0
	c.Storage.RoutingPolicy = "random"

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy.mode")
	assert.Contains(t, err.Error(), "replication.factor")
	assert.Contains(t, err.Error(), "storage.routing_policy")
}

func TestLoadReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("KOTOBADB_POLICY_MODE", "rbac_only")
	t.Setenv("KOTOBADB_QUERY_DEFAULT_TIMEOUT", "5s")
	t.Setenv("KOTOBADB_REPLAY_MAX_CONCURRENT", "8")

	c := Load()
	assert.Equal(t, "rbac_only", c.Policy.Mode)
	assert.Equal(t, 5*time.Second, c.Query.DefaultTimeout)
	assert.Equal(t, 8, c.Replay.MaxConcurrent)
	assert.NoError(t, c.Validate())
}

func TestEnvConfigPrefixing(t *testing.T) {
	t.Setenv("KOTOBADB_SAMPLE_KEY", "value")
	env := NewEnvConfig("KOTOBADB")
	assert.Equal(t, "value", env.GetString("SAMPLE_KEY", "fallback"))
	assert.Equal(t, "fallback", env.GetString("ABSENT_KEY", "fallback"))
}
