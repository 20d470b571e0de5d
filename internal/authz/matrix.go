package authz

import "sort"

// ActionSet is the set of actions a subject may perform, derived purely from
// its base role and functional roles. It carries no hidden state: the same
// role inputs always produce the same set.
type ActionSet map[Action]struct{}

// Has reports whether the set permits a.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// Actions returns the set's members sorted lexically.
func (s ActionSet) Actions() []Action {
	out := make([]Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var viewerBaseline = []Action{
	ActionAccountRead,
	ActionJournalRead,
	ActionPeriodRead,
	ActionIntercompanyRead,
	ActionReportView,
	ActionOrgRead,
}

var memberExtra = []Action{
	ActionJournalCreate,
	ActionJournalUpdate,
	ActionIntercompanyCreate,
}

var adminExtra = []Action{
	ActionJournalPost,
	ActionJournalVoid,
	ActionJournalDelete,
	ActionAccountCreate,
	ActionAccountUpdate,
	ActionAccountDelete,
	ActionPeriodCreate,
	ActionPeriodUpdate,
	ActionPeriodClose,
	ActionPeriodReopen,
	ActionIntercompanyApprove,
	ActionReportExport,
	ActionAuditRead,
	ActionPolicyRead,
	ActionOrgUpdate,
	ActionOrgManageMembers,
}

// ownerActions is the maximal action space: the owner role holds every action
// in the closed table.
func ownerActions() []Action {
	out := make([]Action, 0, len(actionResourceTypes))
	for a := range actionResourceTypes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// functionalGrants maps each functional role to the actions it contributes on
// top of the base role. Contributions are strictly additive.
var functionalGrants = map[FunctionalRole][]Action{
	FuncAccountant: {
		ActionJournalCreate,
		ActionJournalUpdate,
		ActionJournalPost,
	},
	FuncController: {
		ActionJournalPost,
		ActionJournalVoid,
		ActionPeriodClose,
		ActionPeriodReopen,
		ActionReportExport,
	},
	FuncFinanceManager: {
		ActionReportView,
		ActionReportExport,
		ActionAuditRead,
		ActionIntercompanyApprove,
	},
	FuncPeriodAdmin: {
		ActionPeriodCreate,
		ActionPeriodUpdate,
		ActionPeriodClose,
		ActionPeriodLock,
		ActionPeriodReopen,
	},
	FuncConsolidationManager: {
		ActionIntercompanyCreate,
		ActionIntercompanyApprove,
		ActionReportExport,
	},
}

// ComputeEffectivePermissions returns the action set for a base role plus any
// held functional roles. Unknown roles contribute nothing.
func ComputeEffectivePermissions(base BaseRole, functional []FunctionalRole) ActionSet {
	set := make(ActionSet)

	add := func(actions []Action) {
		for _, a := range actions {
			set[a] = struct{}{}
		}
	}

	switch base {
	case RoleOwner:
		add(ownerActions())
	case RoleAdmin:
		add(viewerBaseline)
		add(memberExtra)
		add(adminExtra)
	case RoleMember:
		add(viewerBaseline)
		add(memberExtra)
	case RoleViewer:
		add(viewerBaseline)
	}

	for _, fr := range functional {
		add(functionalGrants[fr])
	}

	return set
}
