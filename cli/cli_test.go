package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/config"
	"kotobadb.dev/kotobadb/engine"
)

func TestCodeForMapsErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"Nil", nil, ExitOK},
		{"ExplicitExitError", exitWith(ExitConfig, errors.New("bad config")), ExitConfig},
		{"Denied", fmt.Errorf("request: %w", engine.ErrDenied), ExitAuth},
		{"Storage", common.Wrap(common.KindStorage, "get", errors.New("disk gone")), ExitStorage},
		{"Query", common.Wrap(common.KindQuery, "parse", errors.New("syntax")), ExitQuery},
		{"Schema", common.Wrap(common.KindSchema, "validate", errors.New("missing type")), ExitQuery},
		{"Unknown", errors.New("boom"), ExitInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, codeFor(tt.err))
		})
	}
}

func TestBuildRoutingPolicyRejectsUnknownName(t *testing.T) {
	_, err := buildRoutingPolicy(config.StorageConfig{RoutingPolicy: "random"})
	assert.Error(t, err)
	assert.Equal(t, ExitConfig, codeFor(err))
}

func TestPolicyModeParsing(t *testing.T) {
	for _, mode := range []string{"rbac_only", "abac_only", "rbac_first", "abac_first", "combined"} {
		_, err := policyMode(mode)
		assert.NoError(t, err, mode)
	}
	_, err := policyMode("sometimes")
	assert.Error(t, err)
}

func TestAssembleBuildsWorkingEngine(t *testing.T) {
	c := config.Default()
	c.Storage.ColdBackend = "memory" // avoid touching disk in tests

	stack, err := assemble(c, false)
	assert.NoError(t, err)
	if assert.NotNil(t, stack) {
		assert.NotNil(t, stack.Engine)
		stack.Tier.Close()
	}
}
