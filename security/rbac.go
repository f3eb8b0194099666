package security

import (
	"sync"

	"kotobadb.dev/kotobadb/common"
)

// PrincipalID identifies the entity (user, service, process) a role
// is assigned to or a capability check is performed for.
type PrincipalID = string

// Role bundles a CapabilitySet under a name.
type Role struct {
	ID           string
	Name         string
	Capabilities CapabilitySet
}

func NewRole(id, name string) *Role {
	return &Role{ID: id, Name: name, Capabilities: NewCapabilitySet()}
}

func (r *Role) AddCapability(cap Capability) { r.Capabilities.AddCapability(cap) }

// RoleAssignment binds a principal to a role.
type RoleAssignment struct {
	PrincipalID PrincipalID
	RoleID      string
}

// RBACService manages roles and their assignment to principals, and
// resolves a principal's effective capability set as the union of all
// assigned roles' capabilities, built on the capability algebra
// CapabilityService supplies.
type RBACService struct {
	mu          sync.RWMutex
	roles       map[string]*Role
	assignments map[PrincipalID][]string // principal -> role IDs
}

func NewRBACService() *RBACService {
	return &RBACService{
		roles:       make(map[string]*Role),
		assignments: make(map[PrincipalID][]string),
	}
}

func (s *RBACService) AddRole(role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[role.ID]; exists {
		return common.Wrap(common.KindAuthorization, "add-role", errRoleAlreadyExists(role.ID))
	}
	s.roles[role.ID] = role
	return nil
}

func (s *RBACService) GetRole(id string) (*Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	return role, ok
}

func (s *RBACService) AssignRole(assignment RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[assignment.RoleID]; !ok {
		return common.Wrap(common.KindAuthorization, "assign-role", errRoleNotFound(assignment.RoleID))
	}
	for _, existing := range s.assignments[assignment.PrincipalID] {
		if existing == assignment.RoleID {
			return nil
		}
	}
	s.assignments[assignment.PrincipalID] = append(s.assignments[assignment.PrincipalID], assignment.RoleID)
	return nil
}

func (s *RBACService) UnassignRole(principal PrincipalID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := s.assignments[principal]
	kept := roles[:0]
	for _, r := range roles {
		if r != roleID {
			kept = append(kept, r)
		}
	}
	s.assignments[principal] = kept
}

func (s *RBACService) RolesForPrincipal(principal PrincipalID) []*Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Role
	for _, roleID := range s.assignments[principal] {
		if role, ok := s.roles[roleID]; ok {
			out = append(out, role)
		}
	}
	return out
}

// GetPrincipalCapabilities unions the capabilities of every role
// assigned to the principal.
func (s *RBACService) GetPrincipalCapabilities(principal PrincipalID) CapabilitySet {
	combined := NewCapabilitySet()
	for _, role := range s.RolesForPrincipal(principal) {
		combined = combined.Union(role.Capabilities)
	}
	return combined
}

// CheckPermission reports whether any role assigned to principal
// authorizes action on resourceType within scope.
func (s *RBACService) CheckPermission(principal PrincipalID, resourceType ResourceType, action Action, scope *string) bool {
	return s.GetPrincipalCapabilities(principal).Allows(resourceType, action, scope)
}

// CreateCommonRoles seeds "reader", "editor" and "admin" roles from
// the preset capability bundles.
func (s *RBACService) CreateCommonRoles() error {
	reader := NewRole("reader", "Reader")
	reader.Capabilities = CreatePresetCapabilitySet(PresetReadOnly)
	editor := NewRole("editor", "Editor")
	editor.Capabilities = CreatePresetCapabilitySet(PresetReadWrite)
	admin := NewRole("admin", "Administrator")
	admin.Capabilities = CreatePresetCapabilitySet(PresetAdmin)

	for _, role := range []*Role{reader, editor, admin} {
		if _, exists := s.GetRole(role.ID); exists {
			continue
		}
		if err := s.AddRole(role); err != nil {
			return err
		}
	}
	return nil
}

type roleError string

func (e roleError) Error() string { return string(e) }

func errRoleAlreadyExists(id string) error { return roleError("role already exists: " + id) }
func errRoleNotFound(id string) error      { return roleError("role not found: " + id) }
