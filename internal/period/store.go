package period

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Period statuses. A Locked period rejects journal mutation both through the
// business rule in the ledger service and through deny policies that match on
// the periodStatus attribute.
const (
	StatusOpen   = "Open"
	StatusClosed = "Closed"
	StatusLocked = "Locked"
)

// FiscalPeriod is an accounting period within one organization.
type FiscalPeriod struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	StartDate      time.Time `json:"start_date" db:"start_date"`
	EndDate        time.Time `json:"end_date" db:"end_date"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ErrNotFound is returned when a period does not exist in the organization's
// scope.
var ErrNotFound = errors.New("fiscal period not found")

// Store defines fiscal period storage operations.
type Store interface {
	Create(ctx context.Context, p FiscalPeriod) (FiscalPeriod, error)
	Get(ctx context.Context, organizationID, id string) (FiscalPeriod, error)
	List(ctx context.Context, organizationID string) ([]FiscalPeriod, error)
	Update(ctx context.Context, p FiscalPeriod) error
	SetStatus(ctx context.Context, organizationID, id, status string) error
}

type store struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed fiscal period store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

func (s *store) Create(ctx context.Context, p FiscalPeriod) (FiscalPeriod, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusOpen
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO fiscal_periods (id, organization_id, name, start_date, end_date, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		p.ID, p.OrganizationID, p.Name, p.StartDate, p.EndDate, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *store) Get(ctx context.Context, organizationID, id string) (FiscalPeriod, error) {
	var p FiscalPeriod
	err := s.db.GetContext(ctx, &p,
		`SELECT * FROM fiscal_periods WHERE organization_id = $1 AND id = $2`,
		organizationID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return FiscalPeriod{}, ErrNotFound
	}
	return p, err
}

func (s *store) List(ctx context.Context, organizationID string) ([]FiscalPeriod, error) {
	var periods []FiscalPeriod
	err := s.db.SelectContext(ctx, &periods,
		`SELECT * FROM fiscal_periods WHERE organization_id = $1 ORDER BY start_date`, organizationID)
	return periods, err
}

func (s *store) Update(ctx context.Context, p FiscalPeriod) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fiscal_periods SET name = $3, start_date = $4, end_date = $5, updated_at = NOW()
		 WHERE organization_id = $1 AND id = $2`,
		p.OrganizationID, p.ID, p.Name, p.StartDate, p.EndDate)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) SetStatus(ctx context.Context, organizationID, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fiscal_periods SET status = $3, updated_at = NOW() WHERE organization_id = $1 AND id = $2`,
		organizationID, id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
