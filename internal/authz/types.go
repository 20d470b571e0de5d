package authz

import (
	"context"
	"encoding/json"
	"time"
)

// Subject holds the attributes of the principal being checked. It is sourced
// from organization membership and is immutable for the duration of one check.
type Subject struct {
	UserID          string           `json:"user_id"`
	OrganizationID  string           `json:"organization_id"`
	BaseRole        BaseRole         `json:"base_role"`
	FunctionalRoles []FunctionalRole `json:"functional_roles"`
	IsPlatformAdmin bool             `json:"is_platform_admin"`
}

// HasFunctionalRole reports whether the subject holds fr.
func (s Subject) HasFunctionalRole(fr FunctionalRole) bool {
	for _, held := range s.FunctionalRoles {
		if held == fr {
			return true
		}
	}
	return false
}

// ResourceContext describes the thing being acted upon. Attribute keys are
// opaque strings so domain services can inject new attributes (a new lock
// state, say) without matcher changes.
type ResourceContext struct {
	Type       ResourceType   `json:"type"`
	ID         string         `json:"id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// EnvironmentContext carries optional request metadata. A zero value is valid
// and simply means environment conditions never match.
type EnvironmentContext struct {
	CurrentTime time.Time `json:"current_time,omitzero"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// Effect is the outcome a policy contributes when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// DefaultPriority is assigned to policies created without an explicit priority.
const DefaultPriority = 500

// Policy is an organization-scoped access rule. Condition components are
// parsed once at load time; a nil component matches any value.
type Policy struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Subject        *Condition `json:"subject_condition,omitempty"`
	Resource       *Condition `json:"resource_condition,omitempty"`
	Action         *Condition `json:"action_condition,omitempty"`
	Environment    *Condition `json:"environment_condition,omitempty"`
	Effect         Effect     `json:"effect"`
	Priority       int        `json:"priority"`
	IsSystemPolicy bool       `json:"is_system_policy"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EvaluationContext is the single immutable input to the policy engine.
type EvaluationContext struct {
	Subject     Subject
	Resource    ResourceContext
	Action      Action
	Environment EnvironmentContext
}

// Decision is the outcome of a policy evaluation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// ReasonNoApplicablePolicy is the default-deny rationale when no policy
// matched the evaluation context at all.
const ReasonNoApplicablePolicy = "no applicable policy"

// EvaluationResult is the engine's decision plus its auditable rationale.
type EvaluationResult struct {
	Decision         Decision `json:"decision"`
	Reason           string   `json:"reason"`
	MatchedPolicyIDs []string `json:"matched_policy_ids,omitempty"`
}

// DenialEntry records a rejected access attempt. Entries are append-only.
type DenialEntry struct {
	UserID           string    `json:"user_id"`
	OrganizationID   string    `json:"organization_id"`
	Action           Action    `json:"action"`
	ResourceType     ResourceType `json:"resource_type"`
	ResourceID       string    `json:"resource_id,omitempty"`
	DenialReason     string    `json:"denial_reason"`
	MatchedPolicyIDs []string  `json:"matched_policy_ids,omitempty"`
	IPAddress        string    `json:"ip_address,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// PolicyStore loads an organization's policies for evaluation. Implementations
// must return only active policies and must never substitute an empty list for
// a load failure.
type PolicyStore interface {
	FindActiveByOrganization(ctx context.Context, organizationID string) ([]Policy, error)
}

// rawPolicy is the storage shape of a policy before its conditions are parsed.
type rawPolicy struct {
	ID             string          `db:"id"`
	OrganizationID string          `db:"organization_id"`
	Name           string          `db:"name"`
	Subject        json.RawMessage `db:"subject_condition"`
	Resource       json.RawMessage `db:"resource_condition"`
	Action         json.RawMessage `db:"action_condition"`
	Environment    json.RawMessage `db:"environment_condition"`
	Effect         string          `db:"effect"`
	Priority       int             `db:"priority"`
	IsSystemPolicy bool            `db:"is_system_policy"`
	IsActive       bool            `db:"is_active"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}
