package org

import (
	"context"
	"fmt"

	"github.com/openclose/ledger/internal/authz"
)

// Service manages organizations and memberships, and acts as the subject
// provider for authorization checks.
type Service interface {
	CreateOrganization(ctx context.Context, name, baseCurrency, ownerUserID string) (Organization, error)
	GetOrganization(ctx context.Context, id string) (Organization, error)
	UpdateOrganization(ctx context.Context, o Organization) error
	ListOrganizationsForUser(ctx context.Context, userID string) ([]Organization, error)

	SetMembership(ctx context.Context, m Membership) error
	ListMemberships(ctx context.Context, organizationID string) ([]Membership, error)
	RemoveMembership(ctx context.Context, organizationID, userID string) error

	// Subject implements authz.SubjectProvider.
	Subject(ctx context.Context, organizationID, userID string) (authz.Subject, error)
}

type service struct {
	store Store
}

// NewService creates a new organization service.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) CreateOrganization(ctx context.Context, name, baseCurrency, ownerUserID string) (Organization, error) {
	if name == "" {
		return Organization{}, fmt.Errorf("organization name is required")
	}
	if baseCurrency == "" {
		baseCurrency = "USD"
	}

	o, err := s.store.CreateOrganization(ctx, Organization{Name: name, BaseCurrency: baseCurrency})
	if err != nil {
		return Organization{}, fmt.Errorf("failed to create organization: %w", err)
	}

	// The creator becomes the owner; without this membership nobody could
	// administer the new organization.
	err = s.store.UpsertMembership(ctx, Membership{
		UserID:         ownerUserID,
		OrganizationID: o.ID,
		BaseRole:       string(authz.RoleOwner),
	})
	if err != nil {
		return Organization{}, fmt.Errorf("failed to create owner membership: %w", err)
	}
	return o, nil
}

func (s *service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

func (s *service) UpdateOrganization(ctx context.Context, o Organization) error {
	return s.store.UpdateOrganization(ctx, o)
}

func (s *service) ListOrganizationsForUser(ctx context.Context, userID string) ([]Organization, error) {
	return s.store.ListOrganizationsForUser(ctx, userID)
}

func (s *service) SetMembership(ctx context.Context, m Membership) error {
	if !authz.ValidBaseRole(authz.BaseRole(m.BaseRole)) {
		return fmt.Errorf("invalid base role %q", m.BaseRole)
	}
	return s.store.UpsertMembership(ctx, m)
}

func (s *service) ListMemberships(ctx context.Context, organizationID string) ([]Membership, error) {
	return s.store.ListMemberships(ctx, organizationID)
}

func (s *service) RemoveMembership(ctx context.Context, organizationID, userID string) error {
	return s.store.DeleteMembership(ctx, organizationID, userID)
}

// Subject loads the user's membership and converts it into subject
// attributes for an authorization check.
func (s *service) Subject(ctx context.Context, organizationID, userID string) (authz.Subject, error) {
	m, err := s.store.GetMembership(ctx, organizationID, userID)
	if err != nil {
		return authz.Subject{}, fmt.Errorf("load membership: %w", err)
	}

	functional := make([]authz.FunctionalRole, len(m.FunctionalRoles))
	for i, fr := range m.FunctionalRoles {
		functional[i] = authz.FunctionalRole(fr)
	}
	return authz.Subject{
		UserID:          m.UserID,
		OrganizationID:  m.OrganizationID,
		BaseRole:        authz.BaseRole(m.BaseRole),
		FunctionalRoles: functional,
		IsPlatformAdmin: m.IsPlatformAdmin,
	}, nil
}
