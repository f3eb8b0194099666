// Package security implements the policy engine: capability-based
// RBAC, attribute-based ABAC, and the unified engine composing the two
// under a configurable mode with deny precedence. Authentication is
// the auth package's concern; this package only decides what an
// already-identified principal may do.
package security

import (
	"github.com/sirupsen/logrus"
)

// ResourceKind enumerates the categories of resource a Capability or
// Policy can govern. ResourceCustom carries an arbitrary string in
// ResourceType.Custom.
type ResourceKind int

const (
	ResourceGraph ResourceKind = iota
	ResourceFileSystem
	ResourceNetwork
	ResourceEnvironment
	ResourceSystem
	ResourcePlugin
	ResourceQuery
	ResourceAdmin
	ResourceUser
	ResourceCustom
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceGraph:
		return "graph"
	case ResourceFileSystem:
		return "filesystem"
	case ResourceNetwork:
		return "network"
	case ResourceEnvironment:
		return "environment"
	case ResourceSystem:
		return "system"
	case ResourcePlugin:
		return "plugin"
	case ResourceQuery:
		return "query"
	case ResourceAdmin:
		return "admin"
	case ResourceUser:
		return "user"
	case ResourceCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ResourceType identifies what a Capability or Policy applies to.
type ResourceType struct {
	Kind   ResourceKind
	Custom string // only populated when Kind == ResourceCustom
}

func NewResourceType(kind ResourceKind) ResourceType { return ResourceType{Kind: kind} }

func CustomResourceType(name string) ResourceType {
	return ResourceType{Kind: ResourceCustom, Custom: name}
}

func (r ResourceType) String() string {
	if r.Kind == ResourceCustom {
		return r.Custom
	}
	return r.Kind.String()
}

func (r ResourceType) Equal(other ResourceType) bool {
	return r.Kind == other.Kind && (r.Kind != ResourceCustom || r.Custom == other.Custom)
}

// ActionKind enumerates the actions a Capability or Policy can permit.
type ActionKind int

const (
	ActionRead ActionKind = iota
	ActionWrite
	ActionExecute
	ActionDelete
	ActionCreate
	ActionUpdate
	ActionAdmin
	ActionCustom
)

func (k ActionKind) String() string {
	switch k {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionExecute:
		return "execute"
	case ActionDelete:
		return "delete"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionAdmin:
		return "admin"
	case ActionCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Action is the verb half of a capability check.
type Action struct {
	Kind   ActionKind
	Custom string // only populated when Kind == ActionCustom
}

func NewAction(kind ActionKind) Action { return Action{Kind: kind} }

func CustomAction(name string) Action { return Action{Kind: ActionCustom, Custom: name} }

func (a Action) String() string {
	if a.Kind == ActionCustom {
		return a.Custom
	}
	return a.Kind.String()
}

func (a Action) Equal(other Action) bool {
	return a.Kind == other.Kind && (a.Kind != ActionCustom || a.Custom == other.Custom)
}

// Capability is a specific permission to perform an Action on a
// ResourceType, optionally narrowed by a scope pattern (e.g.
// "users:*").
type Capability struct {
	ResourceType ResourceType
	Action       Action
	Scope        *string
	Conditions   map[string]interface{}
}

func NewCapability(resourceType ResourceType, action Action, scope *string) Capability {
	return Capability{ResourceType: resourceType, Action: action, Scope: scope}
}

func NewCapabilityWithConditions(resourceType ResourceType, action Action, scope *string, conditions map[string]interface{}) Capability {
	return Capability{ResourceType: resourceType, Action: action, Scope: scope, Conditions: conditions}
}

// Matches reports whether this capability authorizes the given
// request.
func (c Capability) Matches(resourceType ResourceType, action Action, scope *string) bool {
	if !c.ResourceType.Equal(resourceType) || !c.Action.Equal(action) {
		return false
	}
	if c.Scope == nil {
		return true
	}
	if scope == nil {
		return false
	}
	return scopeMatches(*c.Scope, *scope)
}

// scopeMatches implements simple wildcard matching; extendable to
// full glob patterns if scopes ever need them.
func scopeMatches(capScope, reqScope string) bool {
	if capScope == reqScope {
		return true
	}
	if capScope == "*" {
		return true
	}
	if len(capScope) > 1 && capScope[len(capScope)-2:] == ":*" {
		prefix := capScope[:len(capScope)-2]
		return len(reqScope) > len(prefix) && reqScope[:len(prefix)] == prefix && reqScope[len(prefix)] == ':'
	}
	return false
}

// Attenuate returns a more restrictive copy of this capability. A
// scope can only be narrowed, never widened or removed.
func (c Capability) Attenuate(newScope *string) Capability {
	attenuated := c
	switch {
	case c.Scope != nil && newScope != nil:
		if !scopeMatches(*c.Scope, *newScope) {
			attenuated.Scope = newScope
		}
	case c.Scope != nil && newScope == nil:
		// removing a restriction is not an attenuation; keep original
	case c.Scope == nil && newScope != nil:
		attenuated.Scope = newScope
	}
	return attenuated
}

func (c Capability) Equal(other Capability) bool {
	if !c.ResourceType.Equal(other.ResourceType) || !c.Action.Equal(other.Action) {
		return false
	}
	switch {
	case c.Scope == nil && other.Scope == nil:
		return true
	case c.Scope == nil || other.Scope == nil:
		return false
	default:
		return *c.Scope == *other.Scope
	}
}

// CapabilitySet is a collection of capabilities granted to a
// principal.
type CapabilitySet struct {
	Capabilities []Capability
	Metadata     map[string]interface{}
}

func NewCapabilitySet() CapabilitySet { return CapabilitySet{} }

func NewCapabilitySetWithMetadata(metadata map[string]interface{}) CapabilitySet {
	return CapabilitySet{Metadata: metadata}
}

func (cs *CapabilitySet) AddCapability(cap Capability) {
	if !cs.HasCapability(cap) {
		cs.Capabilities = append(cs.Capabilities, cap)
	}
}

func (cs *CapabilitySet) RemoveCapability(cap Capability) {
	kept := cs.Capabilities[:0]
	for _, existing := range cs.Capabilities {
		if !existing.Equal(cap) {
			kept = append(kept, existing)
		}
	}
	cs.Capabilities = kept
}

func (cs CapabilitySet) HasCapability(cap Capability) bool {
	for _, existing := range cs.Capabilities {
		if existing.Equal(cap) {
			return true
		}
	}
	return false
}

// Allows reports whether any capability in the set authorizes the
// request.
func (cs CapabilitySet) Allows(resourceType ResourceType, action Action, scope *string) bool {
	for _, cap := range cs.Capabilities {
		if cap.Matches(resourceType, action, scope) {
			return true
		}
	}
	return false
}

func (cs CapabilitySet) CapabilitiesForResource(resourceType ResourceType) []Capability {
	var out []Capability
	for _, cap := range cs.Capabilities {
		if cap.ResourceType.Equal(resourceType) {
			out = append(out, cap)
		}
	}
	return out
}

// Attenuate builds a more restrictive set: only capabilities matching
// a restriction's resource/action survive, each narrowed to the
// restriction's scope.
func (cs CapabilitySet) Attenuate(restrictions []Capability) CapabilitySet {
	newSet := NewCapabilitySet()
	for _, restriction := range restrictions {
		for _, cap := range cs.Capabilities {
			if cap.ResourceType.Equal(restriction.ResourceType) && cap.Action.Equal(restriction.Action) {
				newSet.AddCapability(cap.Attenuate(restriction.Scope))
			}
		}
	}
	return newSet
}

func (cs CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	combined := CapabilitySet{Capabilities: append([]Capability{}, cs.Capabilities...), Metadata: cs.Metadata}
	for _, cap := range other.Capabilities {
		combined.AddCapability(cap)
	}
	return combined
}

func (cs CapabilitySet) Intersection(other CapabilitySet) CapabilitySet {
	result := NewCapabilitySet()
	for _, cap := range cs.Capabilities {
		if other.HasCapability(cap) {
			result.AddCapability(cap)
		}
	}
	return result
}

func (cs CapabilitySet) IsEmpty() bool { return len(cs.Capabilities) == 0 }

func (cs CapabilitySet) Len() int { return len(cs.Capabilities) }

// CapabilityConfig tunes CapabilityService's optional logging/auditing.
type CapabilityConfig struct {
	EnableLogging      bool
	EnableAuditing     bool
	DefaultAttenuation []Capability
}

// CapabilityService checks, grants, revokes and attenuates
// capability sets.
type CapabilityService struct {
	config CapabilityConfig
	log    *logrus.Entry
}

func NewCapabilityService() *CapabilityService {
	return &CapabilityService{log: logrus.WithField("component", "security.capability")}
}

func NewCapabilityServiceWithConfig(config CapabilityConfig) *CapabilityService {
	return &CapabilityService{config: config, log: logrus.WithField("component", "security.capability")}
}

func (s *CapabilityService) CheckCapability(capSet CapabilitySet, resourceType ResourceType, action Action, scope *string) bool {
	allowed := capSet.Allows(resourceType, action, scope)
	if s.config.EnableLogging {
		s.log.WithFields(logrus.Fields{
			"resource_type": resourceType.String(),
			"action":        action.String(),
			"allowed":       allowed,
		}).Debug("capability check")
	}
	return allowed
}

func (s *CapabilityService) GrantCapabilities(existing CapabilitySet, newCaps []Capability) CapabilitySet {
	updated := CapabilitySet{Capabilities: append([]Capability{}, existing.Capabilities...), Metadata: existing.Metadata}
	for _, cap := range newCaps {
		updated.AddCapability(cap)
	}
	return updated
}

func (s *CapabilityService) RevokeCapabilities(existing CapabilitySet, toRevoke []Capability) CapabilitySet {
	updated := CapabilitySet{Capabilities: append([]Capability{}, existing.Capabilities...), Metadata: existing.Metadata}
	for _, cap := range toRevoke {
		updated.RemoveCapability(cap)
	}
	return updated
}

func (s *CapabilityService) AttenuateCapabilities(capSet CapabilitySet, restrictions []Capability) CapabilitySet {
	return capSet.Attenuate(restrictions)
}

// PresetCapabilitySet names a predefined bundle of capabilities for a
// common role.
type PresetCapabilitySet int

const (
	PresetReadOnly PresetCapabilitySet = iota
	PresetReadWrite
	PresetAdmin
	PresetNetworkAccess
	PresetFileSystemRead
)

func CreatePresetCapabilitySet(preset PresetCapabilitySet) CapabilitySet {
	capSet := NewCapabilitySet()
	switch preset {
	case PresetReadOnly:
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceQuery), NewAction(ActionExecute), nil))
	case PresetReadWrite:
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionWrite), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionCreate), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionUpdate), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceQuery), NewAction(ActionExecute), nil))
	case PresetAdmin:
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionRead), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionWrite), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionCreate), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionUpdate), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceGraph), NewAction(ActionDelete), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceQuery), NewAction(ActionExecute), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceUser), NewAction(ActionAdmin), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceAdmin), NewAction(ActionAdmin), nil))
	case PresetNetworkAccess:
		capSet.AddCapability(NewCapability(NewResourceType(ResourceNetwork), NewAction(ActionRead), nil))
		capSet.AddCapability(NewCapability(NewResourceType(ResourceNetwork), NewAction(ActionWrite), nil))
	case PresetFileSystemRead:
		capSet.AddCapability(NewCapability(NewResourceType(ResourceFileSystem), NewAction(ActionRead), nil))
	}
	return capSet
}
