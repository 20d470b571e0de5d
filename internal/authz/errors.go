package authz

import "fmt"

// PermissionDeniedError is the expected outcome of a correctly functioning
// check: the caller is not allowed to perform the action. It maps to a 403 at
// the transport boundary.
type PermissionDeniedError struct {
	Action       Action
	ResourceType ResourceType
	Reason       string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied for %s on %s: %s", e.Action, e.ResourceType, e.Reason)
}

// PolicyLoadError means the policy store was unreachable or returned malformed
// data. It aborts the check: substituting an empty policy list would silently
// turn an ABAC-governed organization into RBAC-only and widen access.
type PolicyLoadError struct {
	OrganizationID string
	Err            error
}

func (e *PolicyLoadError) Error() string {
	return fmt.Sprintf("load policies for organization %s: %v", e.OrganizationID, e.Err)
}

func (e *PolicyLoadError) Unwrap() error { return e.Err }

// AuditError means the denial audit write failed after a deny decision was
// computed. The whole check fails rather than returning an unrecorded denial.
type AuditError struct {
	Op  string
	Err error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("authorization audit %s: %v", e.Op, e.Err)
}

func (e *AuditError) Unwrap() error { return e.Err }
