package org

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Organization is a tenant of the ledger. Every account, journal entry,
// policy, and audit row is scoped to exactly one organization.
type Organization struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	BaseCurrency string    `json:"base_currency" db:"base_currency"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Membership ties a user to an organization with a base role and any number
// of functional roles.
type Membership struct {
	UserID          string         `json:"user_id" db:"user_id"`
	OrganizationID  string         `json:"organization_id" db:"organization_id"`
	BaseRole        string         `json:"base_role" db:"base_role"`
	FunctionalRoles pq.StringArray `json:"functional_roles" db:"functional_roles"`
	IsPlatformAdmin bool           `json:"is_platform_admin" db:"is_platform_admin"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// ErrNotFound is returned when an organization or membership does not exist.
var ErrNotFound = errors.New("not found")

// Store defines organization and membership storage operations.
type Store interface {
	CreateOrganization(ctx context.Context, o Organization) (Organization, error)
	GetOrganization(ctx context.Context, id string) (Organization, error)
	UpdateOrganization(ctx context.Context, o Organization) error
	ListOrganizationsForUser(ctx context.Context, userID string) ([]Organization, error)

	UpsertMembership(ctx context.Context, m Membership) error
	GetMembership(ctx context.Context, organizationID, userID string) (Membership, error)
	ListMemberships(ctx context.Context, organizationID string) ([]Membership, error)
	DeleteMembership(ctx context.Context, organizationID, userID string) error
}

type store struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed organization store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

func (s *store) CreateOrganization(ctx context.Context, o Organization) (Organization, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO organizations (id, name, base_currency) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		o.ID, o.Name, o.BaseCurrency,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *store) GetOrganization(ctx context.Context, id string) (Organization, error) {
	var o Organization
	err := s.db.GetContext(ctx, &o, `SELECT * FROM organizations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	return o, err
}

func (s *store) UpdateOrganization(ctx context.Context, o Organization) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET name = $2, base_currency = $3, updated_at = NOW() WHERE id = $1`,
		o.ID, o.Name, o.BaseCurrency)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) ListOrganizationsForUser(ctx context.Context, userID string) ([]Organization, error) {
	var orgs []Organization
	err := s.db.SelectContext(ctx, &orgs,
		`SELECT o.* FROM organizations o
		 JOIN memberships m ON o.id = m.organization_id
		 WHERE m.user_id = $1 ORDER BY o.name`, userID)
	return orgs, err
}

func (s *store) UpsertMembership(ctx context.Context, m Membership) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, organization_id, base_role, functional_roles, is_platform_admin)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, organization_id)
		 DO UPDATE SET base_role = $3, functional_roles = $4, is_platform_admin = $5, updated_at = NOW()`,
		m.UserID, m.OrganizationID, m.BaseRole, m.FunctionalRoles, m.IsPlatformAdmin)
	return err
}

func (s *store) GetMembership(ctx context.Context, organizationID, userID string) (Membership, error) {
	var m Membership
	err := s.db.GetContext(ctx, &m,
		`SELECT * FROM memberships WHERE organization_id = $1 AND user_id = $2`,
		organizationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Membership{}, ErrNotFound
	}
	return m, err
}

func (s *store) ListMemberships(ctx context.Context, organizationID string) ([]Membership, error) {
	var members []Membership
	err := s.db.SelectContext(ctx, &members,
		`SELECT * FROM memberships WHERE organization_id = $1 ORDER BY user_id`, organizationID)
	return members, err
}

func (s *store) DeleteMembership(ctx context.Context, organizationID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`,
		organizationID, userID)
	return err
}
