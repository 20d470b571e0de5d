package authz

import (
	"net/netip"
	"strings"
)

// The three matchers share one contract: a nil condition matches anything,
// and a condition referencing an attribute absent from the context never
// matches. The second half prevents a policy author from writing an
// accidentally-universal predicate by omitting request metadata.

// Subject attribute names usable in subject conditions.
const (
	AttrUserID          = "userId"
	AttrOrganizationID  = "organizationId"
	AttrBaseRole        = "baseRole"
	AttrFunctionalRoles = "functionalRoles"
	AttrIsPlatformAdmin = "isPlatformAdmin"
)

func matchSubject(cond *Condition, s Subject) bool {
	return cond.eval(func(name string) (any, bool) {
		switch name {
		case AttrUserID:
			return s.UserID, true
		case AttrOrganizationID:
			return s.OrganizationID, true
		case AttrBaseRole:
			return string(s.BaseRole), true
		case AttrFunctionalRoles:
			held := make([]string, len(s.FunctionalRoles))
			for i, fr := range s.FunctionalRoles {
				held[i] = string(fr)
			}
			return held, true
		case AttrIsPlatformAdmin:
			return s.IsPlatformAdmin, true
		}
		return nil, false
	})
}

// Resource conditions address the resource type as "type" and everything else
// through the opaque attribute map, so new resource attributes require no
// matcher changes.
func matchResource(cond *Condition, r ResourceContext) bool {
	return cond.eval(func(name string) (any, bool) {
		switch name {
		case "type":
			return string(r.Type), true
		case "id":
			if r.ID == "" {
				return nil, false
			}
			return r.ID, true
		}
		v, ok := r.Attributes[name]
		return v, ok
	})
}

// Environment attribute names usable in environment conditions.
const (
	AttrTimeOfDay = "timeOfDay"
	AttrDayOfWeek = "dayOfWeek"
	AttrIPAddress = "ipAddress"
)

func matchEnvironment(cond *Condition, e EnvironmentContext) bool {
	return cond.eval(func(name string) (any, bool) {
		switch name {
		case AttrTimeOfDay:
			if e.CurrentTime.IsZero() {
				return nil, false
			}
			// "HH:MM" compares correctly under the range operator's
			// lexical ordering.
			return e.CurrentTime.Format("15:04"), true
		case AttrDayOfWeek:
			if e.CurrentTime.IsZero() {
				return nil, false
			}
			return strings.ToLower(e.CurrentTime.Weekday().String()), true
		case AttrIPAddress:
			if e.IPAddress == "" {
				return nil, false
			}
			return e.IPAddress, true
		}
		return nil, false
	})
}

// matchAction applies a policy's action condition against the "action"
// attribute. An absent condition makes the policy apply to every action.
func matchAction(cond *Condition, a Action) bool {
	return cond.eval(func(name string) (any, bool) {
		if name == "action" {
			return string(a), true
		}
		return nil, false
	})
}

// ipInAllowList reports whether ip falls inside any entry of the allow list.
// Entries may be single addresses or CIDR prefixes; unparseable entries are
// skipped rather than matched.
func ipInAllowList(ip string, allow []any) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, entry := range allow {
		s, ok := entry.(string)
		if !ok {
			continue
		}
		if strings.Contains(s, "/") {
			prefix, err := netip.ParsePrefix(s)
			if err == nil && prefix.Contains(addr) {
				return true
			}
			continue
		}
		other, err := netip.ParseAddr(s)
		if err == nil && other == addr {
			return true
		}
	}
	return false
}
