package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRBACService_AssignRoleAndCheckPermission(t *testing.T) {
	svc := NewRBACService()
	reader := NewRole("reader", "Reader")
	reader.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	require.NoError(t, svc.AddRole(reader))

	require.NoError(t, svc.AssignRole(RoleAssignment{PrincipalID: "user1", RoleID: "reader"}))

	assert.True(t, svc.CheckPermission("user1", NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	assert.False(t, svc.CheckPermission("user1", NewResourceType(ResourceGraph), NewAction(ActionWrite), nil))
	assert.False(t, svc.CheckPermission("user2", NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
}

func TestRBACService_AssignRoleFailsForUnknownRole(t *testing.T) {
	svc := NewRBACService()
	err := svc.AssignRole(RoleAssignment{PrincipalID: "user1", RoleID: "missing"})
	assert.Error(t, err)
}

func TestRBACService_UnassignRoleRevokesPermission(t *testing.T) {
	svc := NewRBACService()
	require.NoError(t, svc.CreateCommonRoles())
	require.NoError(t, svc.AssignRole(RoleAssignment{PrincipalID: "user1", RoleID: "admin"}))
	assert.True(t, svc.CheckPermission("user1", NewResourceType(ResourceAdmin), NewAction(ActionAdmin), nil))

	svc.UnassignRole("user1", "admin")
	assert.False(t, svc.CheckPermission("user1", NewResourceType(ResourceAdmin), NewAction(ActionAdmin), nil))
}

func TestRBACService_GetPrincipalCapabilitiesUnionsRoles(t *testing.T) {
	svc := NewRBACService()
	reader := NewRole("reader", "Reader")
	reader.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
	writer := NewRole("writer", "Writer")
	writer.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionWrite), nil))

	require.NoError(t, svc.AddRole(reader))
	require.NoError(t, svc.AddRole(writer))
	require.NoError(t, svc.AssignRole(RoleAssignment{PrincipalID: "user1", RoleID: "reader"}))
	require.NoError(t, svc.AssignRole(RoleAssignment{PrincipalID: "user1", RoleID: "writer"}))

	caps := svc.GetPrincipalCapabilities("user1")
	assert.Equal(t, 2, caps.Len())
}

func TestRBACService_CreateCommonRolesIsIdempotent(t *testing.T) {
	svc := NewRBACService()
	require.NoError(t, svc.CreateCommonRoles())
	require.NoError(t, svc.CreateCommonRoles())
	_, ok := svc.GetRole("admin")
	assert.True(t, ok)
}
