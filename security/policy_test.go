package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/common"
)

func TestPolicyEngineConfig_Defaults(t *testing.T) {
	config := DefaultPolicyEngineConfig()
	assert.Equal(t, ModeCombined, config.Mode)
	assert.True(t, config.RBACEnabled)
	assert.True(t, config.ABACEnabled)
}

func TestUnifiedPolicyEngine_RBACOnlyDeniesWithNoAssignment(t *testing.T) {
	ctx := context.Background()
	config := PolicyEngineConfig{Mode: ModeRBACOnly, RBACEnabled: true, ABACEnabled: false}
	rbac := NewRBACService()
	require.NoError(t, rbac.AddRole(NewRole("reader", "Reader")))

	engine := NewUnifiedPolicyEngine(config).WithRBAC(rbac)

	decision, err := engine.EvaluateAccess(ctx, "user1", NewResourceType(ResourceGraph), nil, NewAction(ActionRead))
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, decision)
}

func TestUnifiedPolicyEngine_ABACOnlyAllowsAdmin(t *testing.T) {
	ctx := context.Background()
	config := PolicyEngineConfig{Mode: ModeABACOnly, RBACEnabled: false, ABACEnabled: true}
	abac := newTestABAC()
	engine := NewUnifiedPolicyEngine(config).WithABAC(abac)
	require.NoError(t, engine.SetupCommonPolicies())

	decision, err := engine.EvaluateAccess(ctx, "user1", NewResourceType(ResourceGraph), nil, NewAction(ActionRead))
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
}

func TestPolicyService_CombinedSetup(t *testing.T) {
	ctx := context.Background()
	config := PolicyEngineConfig{Mode: ModeCombined, RBACEnabled: true, ABACEnabled: true}
	abac := newTestABAC()
	rbac := NewRBACService()

	service := NewPolicyServiceWithServices(config, rbac, abac)
	require.NoError(t, service.SetupCommonPolicies())

	allowed, err := service.CheckPermission(ctx, "user1", NewResourceType(ResourceGraph), nil, NewAction(ActionRead))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPolicyService_DefaultDenyAppliesWhenNotApplicable(t *testing.T) {
	ctx := context.Background()
	config := PolicyEngineConfig{Mode: ModeCombined, RBACEnabled: true, ABACEnabled: true, DefaultDeny: true}
	service := NewPolicyServiceWithServices(config, NewRBACService(), newTestABAC())

	allowed, err := service.CheckPermission(ctx, "user2", NewResourceType(ResourceGraph), nil, NewAction(ActionRead))
	require.NoError(t, err)
	assert.False(t, allowed)
}

// Combined mode with an RBAC grant and an ABAC deny on confidential
// resources: deny wins where the resource is tagged, the RBAC allow
// stands everywhere else.
func TestPolicyService_CombinedDenyPrecedenceOnConfidentialResource(t *testing.T) {
	ctx := context.Background()

	rbac := NewRBACService()
	readers := NewRole("graph-readers", "Graph Readers")
	readers.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	require.NoError(t, rbac.AddRole(readers))
	require.NoError(t, rbac.AssignRole(RoleAssignment{PrincipalID: "alice", RoleID: "graph-readers"}))

	resProvider := NewSimpleResourceAttributeProvider()
	confidential := NewResourceAttributes(NewResourceType(ResourceGraph), nil).
		WithAttribute("confidential", BoolAttr(true))
	resProvider.AddResource("doc:42", confidential)

	abac := NewABACService(NewSimpleUserAttributeProvider(), resProvider, NewSimpleEnvironmentAttributeProvider())
	require.NoError(t, abac.AddPolicy(&Policy{
		ID:        "deny-confidential",
		Effect:    EffectDeny,
		Actions:   []Action{NewAction(ActionRead)},
		Resources: []string{"graph:*"},
		Condition: map[string]string{"confidential": "true"},
	}))

	config := PolicyEngineConfig{Mode: ModeCombined, RBACEnabled: true, ABACEnabled: true}
	service := NewPolicyServiceWithServices(config, rbac, abac)

	decision, err := service.Authorize(ctx, "alice", NewResourceType(ResourceGraph), common.Ptr("doc:42"), NewAction(ActionRead))
	require.NoError(t, err)
	assert.Equal(t, DecisionDeny, decision)

	decision, err = service.Authorize(ctx, "alice", NewResourceType(ResourceGraph), common.Ptr("doc:43"), NewAction(ActionRead))
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
}

func TestAuthorize_IsDeterministicAcrossCalls(t *testing.T) {
	ctx := context.Background()
	config := PolicyEngineConfig{Mode: ModeCombined, RBACEnabled: true, ABACEnabled: true}
	service := NewPolicyServiceWithConfig(config)
	require.NoError(t, service.SetupCommonPolicies())

	first, err := service.Authorize(ctx, "bob", NewResourceType(ResourceQuery), nil, NewAction(ActionExecute))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := service.Authorize(ctx, "bob", NewResourceType(ResourceQuery), nil, NewAction(ActionExecute))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
