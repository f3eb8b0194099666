package security

import (
	"context"

	"kotobadb.dev/kotobadb/common"
)

// PolicyMode selects how RBAC and ABAC evaluation compose.
type PolicyMode int

const (
	ModeRBACOnly PolicyMode = iota
	ModeABACOnly
	ModeRBACFirst
	ModeABACFirst
	ModeCombined
)

// PolicyEngineConfig configures a UnifiedPolicyEngine.
type PolicyEngineConfig struct {
	Mode        PolicyMode
	RBACEnabled bool
	ABACEnabled bool
	// DefaultDeny, when true, turns a NotApplicable combined result
	// into Deny rather than leaving the caller's own default to apply.
	DefaultDeny bool
}

func DefaultPolicyEngineConfig() PolicyEngineConfig {
	return PolicyEngineConfig{Mode: ModeCombined, RBACEnabled: true, ABACEnabled: true}
}

// UnifiedPolicyEngine combines an RBACService and an ABACService under
// one evaluation mode.
type UnifiedPolicyEngine struct {
	config PolicyEngineConfig
	rbac   *RBACService
	abac   *ABACService
}

func NewUnifiedPolicyEngine(config PolicyEngineConfig) *UnifiedPolicyEngine {
	return &UnifiedPolicyEngine{config: config}
}

func (e *UnifiedPolicyEngine) WithRBAC(rbac *RBACService) *UnifiedPolicyEngine {
	e.rbac = rbac
	return e
}

func (e *UnifiedPolicyEngine) WithABAC(abac *ABACService) *UnifiedPolicyEngine {
	e.abac = abac
	return e
}

func (e *UnifiedPolicyEngine) SetRBACService(rbac *RBACService) { e.rbac = rbac }
func (e *UnifiedPolicyEngine) SetABACService(abac *ABACService) { e.abac = abac }

// EvaluateAccess dispatches to the configured PolicyMode. ctx is
// threaded through to the ABAC attribute providers, which may call out
// to an external attribute store.
func (e *UnifiedPolicyEngine) EvaluateAccess(ctx context.Context, principal PrincipalID, resourceType ResourceType, resourceID *string, action Action) (PolicyDecision, error) {
	if err := ctx.Err(); err != nil {
		return DecisionNotApplicable, common.Wrap(common.KindAuthorization, "evaluate-access", err)
	}
	switch e.config.Mode {
	case ModeRBACOnly:
		return e.evaluateRBACOnly(principal, resourceType, action)
	case ModeABACOnly:
		return e.evaluateABACOnly(principal, resourceType, resourceID, action)
	case ModeRBACFirst:
		return e.evaluateRBACFirst(principal, resourceType, resourceID, action)
	case ModeABACFirst:
		return e.evaluateABACFirst(principal, resourceType, resourceID, action)
	case ModeCombined:
		return e.evaluateCombined(principal, resourceType, resourceID, action)
	default:
		return DecisionNotApplicable, nil
	}
}

func (e *UnifiedPolicyEngine) evaluateRBACOnly(principal PrincipalID, resourceType ResourceType, action Action) (PolicyDecision, error) {
	if !e.config.RBACEnabled {
		return DecisionNotApplicable, nil
	}
	if e.rbac == nil {
		return DecisionNotApplicable, common.Wrap(common.KindAuthorization, "evaluate-rbac", errServiceNotConfigured("RBAC"))
	}
	if e.rbac.CheckPermission(principal, resourceType, action, nil) {
		return DecisionAllow, nil
	}
	return DecisionDeny, nil
}

func (e *UnifiedPolicyEngine) evaluateABACOnly(principal PrincipalID, resourceType ResourceType, resourceID *string, action Action) (PolicyDecision, error) {
	if !e.config.ABACEnabled {
		return DecisionNotApplicable, nil
	}
	if e.abac == nil {
		return DecisionNotApplicable, common.Wrap(common.KindAuthorization, "evaluate-abac", errServiceNotConfigured("ABAC"))
	}
	return e.abac.CheckAccess(principal, resourceType, resourceID, action), nil
}

func (e *UnifiedPolicyEngine) evaluateRBACFirst(principal PrincipalID, resourceType ResourceType, resourceID *string, action Action) (PolicyDecision, error) {
	result, err := e.evaluateRBACOnly(principal, resourceType, action)
	if err != nil {
		return DecisionNotApplicable, err
	}
	if result != DecisionNotApplicable {
		return result, nil
	}
	return e.evaluateABACOnly(principal, resourceType, resourceID, action)
}

func (e *UnifiedPolicyEngine) evaluateABACFirst(principal PrincipalID, resourceType ResourceType, resourceID *string, action Action) (PolicyDecision, error) {
	result, err := e.evaluateABACOnly(principal, resourceType, resourceID, action)
	if err != nil {
		return DecisionNotApplicable, err
	}
	if result != DecisionNotApplicable {
		return result, nil
	}
	return e.evaluateRBACOnly(principal, resourceType, action)
}

// evaluateCombined runs both systems and lets deny win over allow.
func (e *UnifiedPolicyEngine) evaluateCombined(principal PrincipalID, resourceType ResourceType, resourceID *string, action Action) (PolicyDecision, error) {
	var rbacResult, abacResult *PolicyDecision

	if e.config.RBACEnabled {
		r, err := e.evaluateRBACOnly(principal, resourceType, action)
		if err != nil {
			return DecisionNotApplicable, err
		}
		// A principal with no assigned roles gives RBAC nothing to say,
		// so its missing capability does not veto an ABAC allow.
		if r == DecisionDeny && len(e.rbac.RolesForPrincipal(principal)) == 0 {
			r = DecisionNotApplicable
		}
		rbacResult = &r
	}
	if e.config.ABACEnabled {
		a, err := e.evaluateABACOnly(principal, resourceType, resourceID, action)
		if err != nil {
			return DecisionNotApplicable, err
		}
		abacResult = &a
	}

	hasAllow, hasDeny := false, false
	for _, r := range []*PolicyDecision{rbacResult, abacResult} {
		if r == nil {
			continue
		}
		switch *r {
		case DecisionAllow:
			hasAllow = true
		case DecisionDeny:
			hasDeny = true
		}
	}

	switch {
	case hasDeny:
		return DecisionDeny, nil
	case hasAllow:
		return DecisionAllow, nil
	case rbacResult != nil || abacResult != nil:
		if e.config.DefaultDeny {
			return DecisionDeny, nil
		}
		return DecisionNotApplicable, nil
	default:
		return DecisionNotApplicable, nil
	}
}

func (e *UnifiedPolicyEngine) GetPrincipalCapabilities(principal PrincipalID) (CapabilitySet, error) {
	if e.rbac == nil {
		return CapabilitySet{}, common.Wrap(common.KindAuthorization, "get-capabilities", errServiceNotConfigured("RBAC"))
	}
	return e.rbac.GetPrincipalCapabilities(principal), nil
}

func (e *UnifiedPolicyEngine) AddRBACRole(role *Role) error {
	if e.rbac == nil {
		return common.Wrap(common.KindAuthorization, "add-role", errServiceNotConfigured("RBAC"))
	}
	return e.rbac.AddRole(role)
}

func (e *UnifiedPolicyEngine) AssignRBACRole(assignment RoleAssignment) error {
	if e.rbac == nil {
		return common.Wrap(common.KindAuthorization, "assign-role", errServiceNotConfigured("RBAC"))
	}
	return e.rbac.AssignRole(assignment)
}

func (e *UnifiedPolicyEngine) AddABACPolicy(policy *Policy) error {
	if e.abac == nil {
		return common.Wrap(common.KindAuthorization, "add-policy", errServiceNotConfigured("ABAC"))
	}
	return e.abac.AddPolicy(policy)
}

func (e *UnifiedPolicyEngine) SetupCommonPolicies() error {
	if e.rbac != nil {
		if err := e.rbac.CreateCommonRoles(); err != nil {
			return err
		}
	}
	if e.abac != nil {
		if err := e.abac.SetupCommonPolicies(); err != nil {
			return err
		}
	}
	return nil
}

func (e *UnifiedPolicyEngine) Config() PolicyEngineConfig     { return e.config }
func (e *UnifiedPolicyEngine) SetConfig(c PolicyEngineConfig) { e.config = c }

// PolicyService is the application-facing facade over a
// UnifiedPolicyEngine.
type PolicyService struct {
	engine *UnifiedPolicyEngine
}

func NewPolicyService() *PolicyService {
	return NewPolicyServiceWithConfig(DefaultPolicyEngineConfig())
}

// NewPolicyServiceWithConfig builds a service whose enabled
// sub-engines are backed by fresh in-memory services; callers needing
// custom stores use NewPolicyServiceWithServices instead.
func NewPolicyServiceWithConfig(config PolicyEngineConfig) *PolicyService {
	engine := NewUnifiedPolicyEngine(config)
	if config.RBACEnabled {
		engine.SetRBACService(NewRBACService())
	}
	if config.ABACEnabled {
		engine.SetABACService(NewABACService(
			NewSimpleUserAttributeProvider(),
			NewSimpleResourceAttributeProvider(),
			NewSimpleEnvironmentAttributeProvider(),
		))
	}
	return &PolicyService{engine: engine}
}

func NewPolicyServiceWithServices(config PolicyEngineConfig, rbac *RBACService, abac *ABACService) *PolicyService {
	engine := NewUnifiedPolicyEngine(config)
	if rbac != nil {
		engine.SetRBACService(rbac)
	}
	if abac != nil {
		engine.SetABACService(abac)
	}
	return &PolicyService{engine: engine}
}

// CheckPermission collapses NotApplicable into the engine's configured
// default.
func (s *PolicyService) CheckPermission(ctx context.Context, principal PrincipalID, resourceType ResourceType, resourceID *string, action Action) (bool, error) {
	decision, err := s.engine.EvaluateAccess(ctx, principal, resourceType, resourceID, action)
	if err != nil {
		return false, err
	}
	switch decision {
	case DecisionAllow:
		return true, nil
	case DecisionDeny:
		return false, nil
	default:
		return !s.engine.Config().DefaultDeny, nil
	}
}

// Authorize is the sole decision procedure callers at the HTTP/session
// boundary use, per the engine's authorization contract.
func (s *PolicyService) Authorize(ctx context.Context, principal PrincipalID, resourceType ResourceType, resourceID *string, action Action) (PolicyDecision, error) {
	return s.engine.EvaluateAccess(ctx, principal, resourceType, resourceID, action)
}

func (s *PolicyService) AddRole(role *Role) error                   { return s.engine.AddRBACRole(role) }
func (s *PolicyService) AssignRole(assignment RoleAssignment) error { return s.engine.AssignRBACRole(assignment) }
func (s *PolicyService) AddPolicy(policy *Policy) error             { return s.engine.AddABACPolicy(policy) }
func (s *PolicyService) SetupCommonPolicies() error                 { return s.engine.SetupCommonPolicies() }
func (s *PolicyService) Engine() *UnifiedPolicyEngine               { return s.engine }

func errServiceNotConfigured(name string) error {
	return roleError(name + " service not configured")
}
