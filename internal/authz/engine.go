package authz

import (
	"fmt"
	"sort"
)

// EvaluatePolicies evaluates a batch of policies against one evaluation
// context. Combination is deny-overrides: any matching deny policy decides the
// outcome regardless of allow priorities. Priority exists only to pick the
// cited policy among same-effect matches; ties break by creation order then id
// so the cited rationale is deterministic.
func EvaluatePolicies(policies []Policy, ec EvaluationContext) EvaluationResult {
	var matched []Policy
	for _, p := range policies {
		if !matchAction(p.Action, ec.Action) {
			continue
		}
		if !matchSubject(p.Subject, ec.Subject) {
			continue
		}
		if !matchResource(p.Resource, ec.Resource) {
			continue
		}
		if !matchEnvironment(p.Environment, ec.Environment) {
			continue
		}
		matched = append(matched, p)
	}

	if len(matched) == 0 {
		return EvaluationResult{
			Decision: DecisionDeny,
			Reason:   ReasonNoApplicablePolicy,
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	for _, p := range matched {
		if p.Effect == EffectDeny {
			return EvaluationResult{
				Decision:         DecisionDeny,
				Reason:           fmt.Sprintf("denied by policy %q", p.Name),
				MatchedPolicyIDs: []string{p.ID},
			}
		}
	}

	cited := matched[0]
	return EvaluationResult{
		Decision:         DecisionAllow,
		Reason:           fmt.Sprintf("allowed by policy %q", cited.Name),
		MatchedPolicyIDs: []string{cited.ID},
	}
}
