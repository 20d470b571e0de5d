package authz

// BaseRole is the primary membership tier of a user within an organization.
type BaseRole string

const (
	RoleOwner  BaseRole = "owner"
	RoleAdmin  BaseRole = "admin"
	RoleMember BaseRole = "member"
	RoleViewer BaseRole = "viewer"
)

// ValidBaseRole reports whether r is one of the four membership tiers.
func ValidBaseRole(r BaseRole) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// FunctionalRole is an additive capability tag layered on top of a base role.
// Functional roles only ever add actions; they never remove one.
type FunctionalRole string

const (
	FuncController           FunctionalRole = "controller"
	FuncFinanceManager       FunctionalRole = "finance_manager"
	FuncAccountant           FunctionalRole = "accountant"
	FuncPeriodAdmin          FunctionalRole = "period_admin"
	FuncConsolidationManager FunctionalRole = "consolidation_manager"
)

// ResourceType identifies the kind of thing an action operates on.
type ResourceType string

const (
	ResourceAccount      ResourceType = "account"
	ResourceJournalEntry ResourceType = "journal_entry"
	ResourceFiscalPeriod ResourceType = "fiscal_period"
	ResourceIntercompany ResourceType = "intercompany"
	ResourceReport       ResourceType = "report"
	ResourcePolicy       ResourceType = "policy"
	ResourceAudit        ResourceType = "audit"
	ResourceOrganization ResourceType = "organization"
)

// Action is a namespaced "<resourceType>:<verb>" permission tag.
type Action string

const (
	ActionAccountCreate Action = "account:create"
	ActionAccountRead   Action = "account:read"
	ActionAccountUpdate Action = "account:update"
	ActionAccountDelete Action = "account:delete"

	ActionJournalCreate Action = "journal_entry:create"
	ActionJournalRead   Action = "journal_entry:read"
	ActionJournalUpdate Action = "journal_entry:update"
	ActionJournalDelete Action = "journal_entry:delete"
	ActionJournalPost   Action = "journal_entry:post"
	ActionJournalVoid   Action = "journal_entry:void"

	ActionPeriodCreate Action = "fiscal_period:create"
	ActionPeriodRead   Action = "fiscal_period:read"
	ActionPeriodUpdate Action = "fiscal_period:update"
	ActionPeriodClose  Action = "fiscal_period:close"
	ActionPeriodLock   Action = "fiscal_period:lock"
	ActionPeriodReopen Action = "fiscal_period:reopen"

	ActionIntercompanyCreate  Action = "intercompany:create"
	ActionIntercompanyRead    Action = "intercompany:read"
	ActionIntercompanyApprove Action = "intercompany:approve"

	ActionReportView   Action = "report:view"
	ActionReportExport Action = "report:export"

	ActionPolicyCreate Action = "policy:create"
	ActionPolicyRead   Action = "policy:read"
	ActionPolicyUpdate Action = "policy:update"
	ActionPolicyDelete Action = "policy:delete"

	ActionAuditRead   Action = "audit:read"
	ActionAuditExport Action = "audit:export"

	ActionOrgRead          Action = "organization:read"
	ActionOrgUpdate        Action = "organization:update"
	ActionOrgManageMembers Action = "organization:manage_members"
)

// actionResourceTypes is the closed mapping from action to the resource type it
// operates on. Every action declared above must have an entry here.
var actionResourceTypes = map[Action]ResourceType{
	ActionAccountCreate: ResourceAccount,
	ActionAccountRead:   ResourceAccount,
	ActionAccountUpdate: ResourceAccount,
	ActionAccountDelete: ResourceAccount,

	ActionJournalCreate: ResourceJournalEntry,
	ActionJournalRead:   ResourceJournalEntry,
	ActionJournalUpdate: ResourceJournalEntry,
	ActionJournalDelete: ResourceJournalEntry,
	ActionJournalPost:   ResourceJournalEntry,
	ActionJournalVoid:   ResourceJournalEntry,

	ActionPeriodCreate: ResourceFiscalPeriod,
	ActionPeriodRead:   ResourceFiscalPeriod,
	ActionPeriodUpdate: ResourceFiscalPeriod,
	ActionPeriodClose:  ResourceFiscalPeriod,
	ActionPeriodLock:   ResourceFiscalPeriod,
	ActionPeriodReopen: ResourceFiscalPeriod,

	ActionIntercompanyCreate:  ResourceIntercompany,
	ActionIntercompanyRead:    ResourceIntercompany,
	ActionIntercompanyApprove: ResourceIntercompany,

	ActionReportView:   ResourceReport,
	ActionReportExport: ResourceReport,

	ActionPolicyCreate: ResourcePolicy,
	ActionPolicyRead:   ResourcePolicy,
	ActionPolicyUpdate: ResourcePolicy,
	ActionPolicyDelete: ResourcePolicy,

	ActionAuditRead:   ResourceAudit,
	ActionAuditExport: ResourceAudit,

	ActionOrgRead:          ResourceOrganization,
	ActionOrgUpdate:        ResourceOrganization,
	ActionOrgManageMembers: ResourceOrganization,
}

// ResourceTypeFor returns the resource type an action operates on. The second
// return is false only for actions outside the closed table, which the service
// treats as a signal to fall back to role-based checks.
func ResourceTypeFor(a Action) (ResourceType, bool) {
	rt, ok := actionResourceTypes[a]
	return rt, ok
}

// KnownResourceType reports whether rt belongs to the closed resource-type set.
func KnownResourceType(rt ResourceType) bool {
	switch rt {
	case ResourceAccount, ResourceJournalEntry, ResourceFiscalPeriod,
		ResourceIntercompany, ResourceReport, ResourcePolicy,
		ResourceAudit, ResourceOrganization:
		return true
	}
	return false
}

// AllActions returns every action in the closed table, sorted for stable output.
func AllActions() []Action {
	return ownerActions()
}
