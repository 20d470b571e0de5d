package authz

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AuditStore records denial audit entries. Writes are append-only.
type AuditStore interface {
	LogDenial(ctx context.Context, entry DenialEntry) error
}

// DecisionRecorder receives one observation per authorization decision.
// Implemented by pkg/observability; a no-op default keeps the service usable
// without a metrics registry (tests, CLI tooling).
type DecisionRecorder interface {
	RecordDecision(decision, mode string)
}

type noopRecorder struct{}

func (noopRecorder) RecordDecision(string, string) {}

// Service orchestrates authorization checks: it loads the organization's
// active policies, chooses RBAC-only or policy evaluation, and records every
// denial it returns. It holds no mutable state; concurrent checks are
// independent.
type Service struct {
	policies PolicyStore
	audit    AuditStore
	logger   *zap.Logger
	metrics  DecisionRecorder
	now      func() time.Time
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithDecisionRecorder attaches a metrics sink for decisions.
func WithDecisionRecorder(r DecisionRecorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock overrides the timestamp source for audit entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an authorization service.
func NewService(policies PolicyStore, audit AuditStore, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		policies: policies,
		audit:    audit,
		logger:   logger,
		metrics:  noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// decision is the internal outcome of one check, before any audit side effect.
type decision struct {
	allowed          bool
	reason           string
	resourceType     ResourceType
	resourceID       string
	matchedPolicyIDs []string
	mode             string // "rbac" or "policy"
}

// CheckPermission verifies that the subject may perform action, optionally
// against an explicit resource context supplied by a domain service. On denial
// it writes an audit entry before returning *PermissionDeniedError; a failed
// audit write fails the whole check with *AuditError instead.
func (s *Service) CheckPermission(ctx context.Context, subject Subject, env EnvironmentContext, action Action, resource *ResourceContext) error {
	policies, err := s.policies.FindActiveByOrganization(ctx, subject.OrganizationID)
	if err != nil {
		return &PolicyLoadError{OrganizationID: subject.OrganizationID, Err: err}
	}

	d := s.decide(policies, subject, env, action, resource)
	s.metrics.RecordDecision(decisionLabel(d.allowed), d.mode)
	if d.allowed {
		return nil
	}

	entry := DenialEntry{
		UserID:           subject.UserID,
		OrganizationID:   subject.OrganizationID,
		Action:           action,
		ResourceType:     d.resourceType,
		ResourceID:       d.resourceID,
		DenialReason:     d.reason,
		MatchedPolicyIDs: d.matchedPolicyIDs,
		IPAddress:        env.IPAddress,
		UserAgent:        env.UserAgent,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.audit.LogDenial(ctx, entry); err != nil {
		s.logger.Error("denial audit write failed",
			zap.String("user_id", subject.UserID),
			zap.String("organization_id", subject.OrganizationID),
			zap.String("action", string(action)),
			zap.Error(err))
		return &AuditError{Op: "log denial", Err: err}
	}

	s.logger.Info("permission denied",
		zap.String("user_id", subject.UserID),
		zap.String("organization_id", subject.OrganizationID),
		zap.String("action", string(action)),
		zap.String("reason", d.reason))
	return &PermissionDeniedError{
		Action:       action,
		ResourceType: d.resourceType,
		Reason:       d.reason,
	}
}

// CheckPermissions evaluates a batch of actions for UI capability probing.
// It is advisory: denials are not audited. Policies are loaded once for the
// whole batch.
func (s *Service) CheckPermissions(ctx context.Context, subject Subject, env EnvironmentContext, actions []Action) (map[Action]bool, error) {
	policies, err := s.policies.FindActiveByOrganization(ctx, subject.OrganizationID)
	if err != nil {
		return nil, &PolicyLoadError{OrganizationID: subject.OrganizationID, Err: err}
	}

	out := make(map[Action]bool, len(actions))
	for _, action := range actions {
		out[action] = s.decide(policies, subject, env, action, nil).allowed
	}
	return out, nil
}

// HasRole reports whether the subject holds exactly the given base role.
func (s *Service) HasRole(subject Subject, role BaseRole) bool {
	return subject.BaseRole == role
}

// HasFunctionalRole reports whether the subject holds the functional role.
func (s *Service) HasFunctionalRole(subject Subject, role FunctionalRole) bool {
	return subject.HasFunctionalRole(role)
}

// GetEffectivePermissions returns the subset of the maximal action space (the
// owner role's full set) the subject may perform. Callers should cache the
// result per request: cost grows with actions times matching policies.
func (s *Service) GetEffectivePermissions(ctx context.Context, subject Subject, env EnvironmentContext) ([]Action, error) {
	policies, err := s.policies.FindActiveByOrganization(ctx, subject.OrganizationID)
	if err != nil {
		return nil, &PolicyLoadError{OrganizationID: subject.OrganizationID, Err: err}
	}

	var allowed []Action
	for _, action := range ownerActions() {
		if s.decide(policies, subject, env, action, nil).allowed {
			allowed = append(allowed, action)
		}
	}
	return allowed, nil
}

// decide computes the outcome for one action with no side effects. With zero
// active policies the permission matrix alone governs; otherwise the policy
// engine runs against the resolved resource context. A caller-supplied
// resource context with an unrecognized type falls back to the matrix for
// that single check.
func (s *Service) decide(policies []Policy, subject Subject, env EnvironmentContext, action Action, resource *ResourceContext) decision {
	resolvedType, knownAction := ResourceTypeFor(action)

	if len(policies) == 0 {
		return s.decideRBAC(subject, action, resolvedType, resource)
	}

	rc := ResourceContext{Type: resolvedType}
	if resource != nil {
		rc = *resource
	}
	if !KnownResourceType(rc.Type) || !knownAction {
		return s.decideRBAC(subject, action, resolvedType, resource)
	}

	result := EvaluatePolicies(policies, EvaluationContext{
		Subject:     subject,
		Resource:    rc,
		Action:      action,
		Environment: env,
	})
	return decision{
		allowed:          result.Decision == DecisionAllow,
		reason:           result.Reason,
		resourceType:     rc.Type,
		resourceID:       rc.ID,
		matchedPolicyIDs: result.MatchedPolicyIDs,
		mode:             "policy",
	}
}

func (s *Service) decideRBAC(subject Subject, action Action, resourceType ResourceType, resource *ResourceContext) decision {
	d := decision{resourceType: resourceType, mode: "rbac"}
	if resource != nil {
		d.resourceType = resource.Type
		d.resourceID = resource.ID
	}

	if subject.IsPlatformAdmin {
		d.allowed = true
		d.reason = "platform administrator"
		return d
	}

	set := ComputeEffectivePermissions(subject.BaseRole, subject.FunctionalRoles)
	if set.Has(action) {
		d.allowed = true
		d.reason = fmt.Sprintf("granted by role '%s'", subject.BaseRole)
		return d
	}

	d.reason = fmt.Sprintf("Role '%s' does not have permission for '%s'", subject.BaseRole, action)
	return d
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
