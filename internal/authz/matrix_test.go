package authz

import "testing"

func TestBaseRolesAreStrictlyNested(t *testing.T) {
	viewer := ComputeEffectivePermissions(RoleViewer, nil)
	member := ComputeEffectivePermissions(RoleMember, nil)
	admin := ComputeEffectivePermissions(RoleAdmin, nil)
	owner := ComputeEffectivePermissions(RoleOwner, nil)

	assertSubset := func(name string, small, big ActionSet) {
		t.Helper()
		for a := range small {
			if !big.Has(a) {
				t.Fatalf("%s: action %s missing from superset", name, a)
			}
		}
		if len(small) >= len(big) {
			t.Fatalf("%s: expected strict subset, got %d vs %d actions", name, len(small), len(big))
		}
	}

	assertSubset("viewer within member", viewer, member)
	assertSubset("member within admin", member, admin)
	assertSubset("admin within owner", admin, owner)
}

func TestOwnerHoldsEveryAction(t *testing.T) {
	owner := ComputeEffectivePermissions(RoleOwner, nil)
	for _, a := range AllActions() {
		if !owner.Has(a) {
			t.Fatalf("owner missing action %s", a)
		}
	}
}

func TestViewerCannotMutate(t *testing.T) {
	viewer := ComputeEffectivePermissions(RoleViewer, nil)
	for _, a := range []Action{
		ActionJournalCreate, ActionJournalPost, ActionJournalVoid,
		ActionPeriodClose, ActionPeriodLock, ActionPolicyCreate,
		ActionOrgManageMembers,
	} {
		if viewer.Has(a) {
			t.Fatalf("viewer unexpectedly holds %s", a)
		}
	}
}

func TestFunctionalRolesAreAdditive(t *testing.T) {
	plain := ComputeEffectivePermissions(RoleMember, nil)
	withRole := ComputeEffectivePermissions(RoleMember, []FunctionalRole{FuncAccountant})

	for a := range plain {
		if !withRole.Has(a) {
			t.Fatalf("functional role removed base action %s", a)
		}
	}
	if !withRole.Has(ActionJournalPost) {
		t.Fatal("accountant member should be able to post journal entries")
	}
	if plain.Has(ActionJournalPost) {
		t.Fatal("plain member should not be able to post journal entries")
	}
}

func TestFunctionalGrantsPerRole(t *testing.T) {
	cases := []struct {
		role    FunctionalRole
		granted Action
	}{
		{FuncController, ActionJournalVoid},
		{FuncFinanceManager, ActionAuditRead},
		{FuncPeriodAdmin, ActionPeriodLock},
		{FuncConsolidationManager, ActionIntercompanyApprove},
	}
	for _, tc := range cases {
		set := ComputeEffectivePermissions(RoleViewer, []FunctionalRole{tc.role})
		if !set.Has(tc.granted) {
			t.Fatalf("%s should grant %s", tc.role, tc.granted)
		}
	}
}

func TestUnknownRolesContributeNothing(t *testing.T) {
	set := ComputeEffectivePermissions(BaseRole("intern"), []FunctionalRole{"barista"})
	if len(set) != 0 {
		t.Fatalf("unknown roles produced %d actions", len(set))
	}
}

func TestEveryActionHasAResourceType(t *testing.T) {
	for _, a := range AllActions() {
		rt, ok := ResourceTypeFor(a)
		if !ok {
			t.Fatalf("action %s has no resource type", a)
		}
		if !KnownResourceType(rt) {
			t.Fatalf("action %s maps to unknown resource type %s", a, rt)
		}
	}
}
