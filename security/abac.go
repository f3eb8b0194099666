package security

import (
	"fmt"
	"sync"

	"kotobadb.dev/kotobadb/common"
)

// AttributeKind tags the scalar kinds an AttributeValue can hold.
type AttributeKind int

const (
	AttrString AttributeKind = iota
	AttrInt
	AttrFloat
	AttrBool
)

// AttributeValue holds a single user/resource/environment attribute
// value for ABAC evaluation.
type AttributeValue struct {
	Kind AttributeKind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
}

func StringAttr(v string) AttributeValue  { return AttributeValue{Kind: AttrString, Str: v} }
func IntAttr(v int64) AttributeValue      { return AttributeValue{Kind: AttrInt, Int: v} }
func FloatAttr(v float64) AttributeValue  { return AttributeValue{Kind: AttrFloat, Flt: v} }
func BoolAttr(v bool) AttributeValue      { return AttributeValue{Kind: AttrBool, Bool: v} }

// AsString renders the attribute as a string for condition matching,
// regardless of its underlying kind.
func (v AttributeValue) AsString() string {
	switch v.Kind {
	case AttrString:
		return v.Str
	case AttrInt:
		return fmt.Sprintf("%d", v.Int)
	case AttrFloat:
		return fmt.Sprintf("%g", v.Flt)
	case AttrBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return ""
	}
}

// UserAttributes is the set of ABAC-relevant attributes for one
// principal.
type UserAttributes struct {
	Attributes map[string]AttributeValue
}

func NewUserAttributes() UserAttributes {
	return UserAttributes{Attributes: make(map[string]AttributeValue)}
}

func (u UserAttributes) WithAttribute(key string, value AttributeValue) UserAttributes {
	u.Attributes[key] = value
	return u
}

// ResourceAttributes is the set of ABAC-relevant attributes for one
// resource.
type ResourceAttributes struct {
	ResourceType ResourceType
	ResourceID   *string
	Attributes   map[string]AttributeValue
}

func NewResourceAttributes(resourceType ResourceType, resourceID *string) ResourceAttributes {
	return ResourceAttributes{ResourceType: resourceType, ResourceID: resourceID, Attributes: make(map[string]AttributeValue)}
}

func (r ResourceAttributes) WithAttribute(key string, value AttributeValue) ResourceAttributes {
	r.Attributes[key] = value
	return r
}

// UserAttributeProvider resolves a principal's attributes.
type UserAttributeProvider interface {
	GetUserAttributes(principal PrincipalID) (UserAttributes, bool)
}

// ResourceAttributeProvider resolves a resource's attributes.
type ResourceAttributeProvider interface {
	GetResourceAttributes(resourceID string) (ResourceAttributes, bool)
}

// EnvironmentAttributeProvider resolves ambient attributes (time of
// day, request origin, and similar) not tied to a specific principal
// or resource.
type EnvironmentAttributeProvider interface {
	GetEnvironmentAttributes() map[string]AttributeValue
}

// SimpleUserAttributeProvider is an in-memory UserAttributeProvider;
// a static provider is a legitimate configuration for small
// deployments, not just a test double.
type SimpleUserAttributeProvider struct {
	mu    sync.RWMutex
	users map[PrincipalID]UserAttributes
}

func NewSimpleUserAttributeProvider() *SimpleUserAttributeProvider {
	return &SimpleUserAttributeProvider{users: make(map[PrincipalID]UserAttributes)}
}

func (p *SimpleUserAttributeProvider) AddUser(principal PrincipalID, attrs UserAttributes) *SimpleUserAttributeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[principal] = attrs
	return p
}

func (p *SimpleUserAttributeProvider) GetUserAttributes(principal PrincipalID) (UserAttributes, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	attrs, ok := p.users[principal]
	return attrs, ok
}

// SimpleResourceAttributeProvider is an in-memory ResourceAttributeProvider.
type SimpleResourceAttributeProvider struct {
	mu        sync.RWMutex
	resources map[string]ResourceAttributes
}

func NewSimpleResourceAttributeProvider() *SimpleResourceAttributeProvider {
	return &SimpleResourceAttributeProvider{resources: make(map[string]ResourceAttributes)}
}

func (p *SimpleResourceAttributeProvider) AddResource(id string, attrs ResourceAttributes) *SimpleResourceAttributeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources[id] = attrs
	return p
}

func (p *SimpleResourceAttributeProvider) GetResourceAttributes(id string) (ResourceAttributes, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	attrs, ok := p.resources[id]
	return attrs, ok
}

// SimpleEnvironmentAttributeProvider returns a fixed attribute map,
// suitable for tests and deployments with no dynamic environment
// signal.
type SimpleEnvironmentAttributeProvider struct {
	Attributes map[string]AttributeValue
}

func NewSimpleEnvironmentAttributeProvider() *SimpleEnvironmentAttributeProvider {
	return &SimpleEnvironmentAttributeProvider{Attributes: make(map[string]AttributeValue)}
}

func (p *SimpleEnvironmentAttributeProvider) GetEnvironmentAttributes() map[string]AttributeValue {
	return p.Attributes
}

// PolicyEffect is the outcome a matching Policy produces.
type PolicyEffect int

const (
	EffectAllow PolicyEffect = iota
	EffectDeny
)

// Policy is an ABAC rule: if a request's action, resource pattern and
// attribute Condition all match, Effect applies. Resources entries use
// the "type:*" / "type:id" / "*" pattern forms.
type Policy struct {
	ID          string
	Description string
	Effect      PolicyEffect
	Actions     []Action // empty means "any action"
	Resources   []string // empty means "any resource"
	// Condition is a conjunction of attribute-equality checks over the
	// combined user+resource+environment attribute maps: every key
	// must be present with the given string value for the policy to
	// match. Deliberately simpler than a full expression language;
	// exact-match attribute checks cover the policies in use.
	Condition map[string]string
}

// PolicyDecision is the three-valued outcome of an ABAC or unified
// policy evaluation.
type PolicyDecision int

const (
	DecisionAllow PolicyDecision = iota
	DecisionDeny
	DecisionNotApplicable
)

// ABACService evaluates Policies against attributes pulled from its
// three providers.
type ABACService struct {
	mu       sync.RWMutex
	policies map[string]*Policy

	userProvider UserAttributeProvider
	resProvider  ResourceAttributeProvider
	envProvider  EnvironmentAttributeProvider
}

func NewABACService(userProvider UserAttributeProvider, resProvider ResourceAttributeProvider, envProvider EnvironmentAttributeProvider) *ABACService {
	return &ABACService{
		policies:     make(map[string]*Policy),
		userProvider: userProvider,
		resProvider:  resProvider,
		envProvider:  envProvider,
	}
}

func (s *ABACService) AddPolicy(policy *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[policy.ID]; exists {
		return common.Wrap(common.KindAuthorization, "add-policy", roleError("policy already exists: "+policy.ID))
	}
	s.policies[policy.ID] = policy
	return nil
}

// CheckAccess evaluates every policy against the request, returning
// Deny if any matching policy denies, Allow if none deny but at least
// one allows, and NotApplicable otherwise. Deny always wins.
func (s *ABACService) CheckAccess(principal PrincipalID, resourceType ResourceType, resourceID *string, action Action) PolicyDecision {
	attrs := s.collectAttributes(principal, resourceType, resourceID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := false
	for _, policy := range s.policies {
		if !policyMatches(policy, resourceType, resourceID, action, attrs) {
			continue
		}
		if policy.Effect == EffectDeny {
			return DecisionDeny
		}
		matched = true
	}
	if matched {
		return DecisionAllow
	}
	return DecisionNotApplicable
}

func (s *ABACService) collectAttributes(principal PrincipalID, resourceType ResourceType, resourceID *string) map[string]string {
	combined := make(map[string]string)
	if u, ok := s.userProvider.GetUserAttributes(principal); ok {
		for k, v := range u.Attributes {
			combined[k] = v.AsString()
		}
	}
	if resourceID != nil {
		if r, ok := s.resProvider.GetResourceAttributes(*resourceID); ok {
			for k, v := range r.Attributes {
				combined[k] = v.AsString()
			}
		}
	}
	for k, v := range s.envProvider.GetEnvironmentAttributes() {
		combined[k] = v.AsString()
	}
	combined["resource_type"] = resourceType.String()
	return combined
}

func policyMatches(policy *Policy, resourceType ResourceType, resourceID *string, action Action, attrs map[string]string) bool {
	if len(policy.Actions) > 0 {
		found := false
		for _, a := range policy.Actions {
			if a.Equal(action) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(policy.Resources) > 0 {
		found := false
		for _, pattern := range policy.Resources {
			if resourcePatternMatches(pattern, resourceType, resourceID) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for key, want := range policy.Condition {
		if attrs[key] != want {
			return false
		}
	}
	return true
}

// resourcePatternMatches implements "*" / "type:*" / "type:id" / exact
// id matching.
func resourcePatternMatches(pattern string, resourceType ResourceType, resourceID *string) bool {
	if pattern == "*" {
		return true
	}
	typeName := resourceType.String()
	if pattern == typeName+":*" {
		return true
	}
	if resourceID != nil {
		if pattern == typeName+":"+*resourceID {
			return true
		}
		if pattern == *resourceID {
			return true
		}
	}
	return false
}

// SetupCommonPolicies seeds an admin-bypass policy.
func (s *ABACService) SetupCommonPolicies() error {
	return s.AddPolicy(&Policy{
		ID:          "admin-full-access",
		Description: "principals with the admin role attribute bypass all resource checks",
		Effect:      EffectAllow,
		Resources:   []string{"*"},
		Condition:   map[string]string{"role": "admin"},
	})
}
