package authz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrPolicyNotFound is returned when a policy id does not exist in the
// organization's scope.
var ErrPolicyNotFound = errors.New("policy not found")

// ErrSystemPolicyImmutable is returned on any attempt to modify or delete a
// system policy after creation.
var ErrSystemPolicyImmutable = errors.New("system policies are immutable")

// Store defines policy storage operations. FindActiveByOrganization is the
// evaluation path; the rest serve policy administration.
type Store interface {
	PolicyStore

	Create(ctx context.Context, p Policy) (Policy, error)
	Get(ctx context.Context, organizationID, id string) (Policy, error)
	List(ctx context.Context, organizationID string) ([]Policy, error)
	Update(ctx context.Context, p Policy) (Policy, error)
	SetActive(ctx context.Context, organizationID, id string, active bool) error
	Delete(ctx context.Context, organizationID, id string) error
}

type store struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed policy store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

// FindActiveByOrganization loads only active policies for one organization.
// Conditions are parsed here, once per load; a row with a malformed condition
// document fails the load rather than being silently skipped.
func (s *store) FindActiveByOrganization(ctx context.Context, organizationID string) ([]Policy, error) {
	var rows []rawPolicy
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM authz_policies WHERE organization_id = $1 AND is_active = TRUE ORDER BY created_at`,
		organizationID)
	if err != nil {
		return nil, err
	}

	policies := make([]Policy, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPolicy()
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", row.ID, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

func (s *store) Create(ctx context.Context, p Policy) (Policy, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Priority == 0 {
		p.Priority = DefaultPriority
	}

	subject, resource, action, environment, err := marshalConditions(p)
	if err != nil {
		return Policy{}, err
	}

	err = s.db.QueryRowxContext(ctx,
		`INSERT INTO authz_policies
		   (id, organization_id, name, subject_condition, resource_condition, action_condition, environment_condition, effect, priority, is_system_policy, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		p.ID, p.OrganizationID, p.Name, subject, resource, action, environment,
		string(p.Effect), p.Priority, p.IsSystemPolicy, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (s *store) Get(ctx context.Context, organizationID, id string) (Policy, error) {
	var row rawPolicy
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM authz_policies WHERE organization_id = $1 AND id = $2`,
		organizationID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Policy{}, ErrPolicyNotFound
	}
	if err != nil {
		return Policy{}, err
	}
	return row.toPolicy()
}

func (s *store) List(ctx context.Context, organizationID string) ([]Policy, error) {
	var rows []rawPolicy
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM authz_policies WHERE organization_id = $1 ORDER BY priority DESC, created_at`,
		organizationID)
	if err != nil {
		return nil, err
	}
	policies := make([]Policy, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPolicy()
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", row.ID, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

func (s *store) Update(ctx context.Context, p Policy) (Policy, error) {
	existing, err := s.Get(ctx, p.OrganizationID, p.ID)
	if err != nil {
		return Policy{}, err
	}
	if existing.IsSystemPolicy {
		return Policy{}, ErrSystemPolicyImmutable
	}

	subject, resource, action, environment, err := marshalConditions(p)
	if err != nil {
		return Policy{}, err
	}

	err = s.db.QueryRowxContext(ctx,
		`UPDATE authz_policies
		    SET name = $3, subject_condition = $4, resource_condition = $5,
		        action_condition = $6, environment_condition = $7,
		        effect = $8, priority = $9, is_active = $10, updated_at = NOW()
		  WHERE organization_id = $1 AND id = $2
		  RETURNING created_at, updated_at`,
		p.OrganizationID, p.ID, p.Name, subject, resource, action, environment,
		string(p.Effect), p.Priority, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Policy{}, ErrPolicyNotFound
	}
	if err != nil {
		return Policy{}, err
	}
	p.IsSystemPolicy = existing.IsSystemPolicy
	return p, nil
}

func (s *store) SetActive(ctx context.Context, organizationID, id string, active bool) error {
	existing, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return err
	}
	if existing.IsSystemPolicy {
		return ErrSystemPolicyImmutable
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE authz_policies SET is_active = $3, updated_at = NOW() WHERE organization_id = $1 AND id = $2`,
		organizationID, id, active)
	return err
}

func (s *store) Delete(ctx context.Context, organizationID, id string) error {
	existing, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return err
	}
	if existing.IsSystemPolicy {
		return ErrSystemPolicyImmutable
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM authz_policies WHERE organization_id = $1 AND id = $2`,
		organizationID, id)
	return err
}

func (r rawPolicy) toPolicy() (Policy, error) {
	subject, err := ParseCondition(r.Subject)
	if err != nil {
		return Policy{}, fmt.Errorf("subject condition: %w", err)
	}
	resource, err := ParseCondition(r.Resource)
	if err != nil {
		return Policy{}, fmt.Errorf("resource condition: %w", err)
	}
	action, err := ParseCondition(r.Action)
	if err != nil {
		return Policy{}, fmt.Errorf("action condition: %w", err)
	}
	environment, err := ParseCondition(r.Environment)
	if err != nil {
		return Policy{}, fmt.Errorf("environment condition: %w", err)
	}

	return Policy{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Name:           r.Name,
		Subject:        subject,
		Resource:       resource,
		Action:         action,
		Environment:    environment,
		Effect:         Effect(r.Effect),
		Priority:       r.Priority,
		IsSystemPolicy: r.IsSystemPolicy,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func marshalConditions(p Policy) (subject, resource, action, environment json.RawMessage, err error) {
	if subject, err = p.Subject.MarshalDocument(); err != nil {
		return
	}
	if resource, err = p.Resource.MarshalDocument(); err != nil {
		return
	}
	if action, err = p.Action.MarshalDocument(); err != nil {
		return
	}
	environment, err = p.Environment.MarshalDocument()
	return
}
