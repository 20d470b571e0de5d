package org

import (
	"context"
	"testing"

	"github.com/openclose/ledger/internal/authz"
)

type fakeStore struct {
	orgs        map[string]Organization
	memberships map[string]Membership
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:        make(map[string]Organization),
		memberships: make(map[string]Membership),
	}
}

func key(organizationID, userID string) string {
	return organizationID + "/" + userID
}

func (f *fakeStore) CreateOrganization(ctx context.Context, o Organization) (Organization, error) {
	if o.ID == "" {
		o.ID = "org1"
	}
	f.orgs[o.ID] = o
	return o, nil
}

func (f *fakeStore) GetOrganization(ctx context.Context, id string) (Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) UpdateOrganization(ctx context.Context, o Organization) error {
	if _, ok := f.orgs[o.ID]; !ok {
		return ErrNotFound
	}
	f.orgs[o.ID] = o
	return nil
}

func (f *fakeStore) ListOrganizationsForUser(ctx context.Context, userID string) ([]Organization, error) {
	var out []Organization
	for _, m := range f.memberships {
		if m.UserID == userID {
			out = append(out, f.orgs[m.OrganizationID])
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertMembership(ctx context.Context, m Membership) error {
	f.memberships[key(m.OrganizationID, m.UserID)] = m
	return nil
}

func (f *fakeStore) GetMembership(ctx context.Context, organizationID, userID string) (Membership, error) {
	m, ok := f.memberships[key(organizationID, userID)]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) ListMemberships(ctx context.Context, organizationID string) ([]Membership, error) {
	var out []Membership
	for _, m := range f.memberships {
		if m.OrganizationID == organizationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteMembership(ctx context.Context, organizationID, userID string) error {
	delete(f.memberships, key(organizationID, userID))
	return nil
}

func TestCreateOrganizationMakesCreatorOwner(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	o, err := svc.CreateOrganization(context.Background(), "Acme", "", "u1")
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	if o.BaseCurrency != "USD" {
		t.Fatalf("expected default currency USD, got %s", o.BaseCurrency)
	}

	m, err := store.GetMembership(context.Background(), o.ID, "u1")
	if err != nil {
		t.Fatalf("creator membership missing: %v", err)
	}
	if m.BaseRole != string(authz.RoleOwner) {
		t.Fatalf("creator should be owner, got %s", m.BaseRole)
	}
}

func TestSetMembershipValidatesBaseRole(t *testing.T) {
	svc := NewService(newFakeStore())

	err := svc.SetMembership(context.Background(), Membership{
		UserID: "u2", OrganizationID: "org1", BaseRole: "superuser",
	})
	if err == nil {
		t.Fatal("expected error for unknown base role")
	}

	err = svc.SetMembership(context.Background(), Membership{
		UserID: "u2", OrganizationID: "org1", BaseRole: string(authz.RoleViewer),
	})
	if err != nil {
		t.Fatalf("valid role rejected: %v", err)
	}
}

func TestSubjectFromMembership(t *testing.T) {
	store := newFakeStore()
	store.memberships[key("org1", "u1")] = Membership{
		UserID:          "u1",
		OrganizationID:  "org1",
		BaseRole:        string(authz.RoleMember),
		FunctionalRoles: []string{"accountant", "controller"},
		IsPlatformAdmin: true,
	}
	svc := NewService(store)

	subject, err := svc.Subject(context.Background(), "org1", "u1")
	if err != nil {
		t.Fatalf("subject: %v", err)
	}
	if subject.BaseRole != authz.RoleMember {
		t.Fatalf("unexpected base role %s", subject.BaseRole)
	}
	if !subject.HasFunctionalRole(authz.FuncController) {
		t.Fatal("subject should carry the controller role")
	}
	if !subject.IsPlatformAdmin {
		t.Fatal("platform admin flag lost")
	}

	if _, err := svc.Subject(context.Background(), "org2", "u1"); err == nil {
		t.Fatal("expected error for non-member organization")
	}
}
