package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestABAC() *ABACService {
	userProvider := NewSimpleUserAttributeProvider().AddUser("user1",
		NewUserAttributes().WithAttribute("role", StringAttr("admin")))
	resProvider := NewSimpleResourceAttributeProvider().AddResource("graph",
		NewResourceAttributes(NewResourceType(ResourceGraph), nil))
	envProvider := NewSimpleEnvironmentAttributeProvider()
	return NewABACService(userProvider, resProvider, envProvider)
}

func TestABACService_AdminPolicyAllows(t *testing.T) {
	svc := newTestABAC()
	require.NoError(t, svc.SetupCommonPolicies())

	decision := svc.CheckAccess("user1", NewResourceType(ResourceGraph), nil, NewAction(ActionRead))
	assert.Equal(t, DecisionAllow, decision)
}

func TestABACService_NoMatchingPolicyIsNotApplicable(t *testing.T) {
	svc := newTestABAC()
	decision := svc.CheckAccess("user2", NewResourceType(ResourceGraph), nil, NewAction(ActionRead))
	assert.Equal(t, DecisionNotApplicable, decision)
}

func TestABACService_DenyPolicyWinsOverAllow(t *testing.T) {
	svc := newTestABAC()
	require.NoError(t, svc.AddPolicy(&Policy{
		ID:        "allow-all-reads",
		Effect:    EffectAllow,
		Actions:   []Action{NewAction(ActionRead)},
		Resources: []string{"*"},
	}))
	require.NoError(t, svc.AddPolicy(&Policy{
		ID:        "deny-admin-reads",
		Effect:    EffectDeny,
		Actions:   []Action{NewAction(ActionRead)},
		Resources: []string{"*"},
		Condition: map[string]string{"role": "admin"},
	}))

	decision := svc.CheckAccess("user1", NewResourceType(ResourceGraph), nil, NewAction(ActionRead))
	assert.Equal(t, DecisionDeny, decision)
}

func TestResourcePatternMatches(t *testing.T) {
	id := "doc1"
	assert.True(t, resourcePatternMatches("*", NewResourceType(ResourceGraph), nil))
	assert.True(t, resourcePatternMatches("graph:*", NewResourceType(ResourceGraph), &id))
	assert.True(t, resourcePatternMatches("graph:doc1", NewResourceType(ResourceGraph), &id))
	assert.False(t, resourcePatternMatches("network:*", NewResourceType(ResourceGraph), &id))
}
