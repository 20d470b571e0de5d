package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Event types deliverable to webhooks.
const (
	EventAuthzDenied  = "authz.denied"
	EventEntryPosted  = "journal_entry.posted"
	EventPeriodLocked = "fiscal_period.locked"
)

// KnownEvent reports whether a subscription event type is deliverable.
func KnownEvent(event string) bool {
	switch event {
	case EventAuthzDenied, EventEntryPosted, EventPeriodLocked:
		return true
	}
	return false
}

// ErrNotFound is returned when a webhook does not exist in the organization's
// scope.
var ErrNotFound = errors.New("webhook not found")

// Webhook is a registered event listener for one organization.
type Webhook struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	URL            string         `json:"url" db:"url"`
	Secret         string         `json:"-" db:"secret"`
	Events         pq.StringArray `json:"events" db:"events"`
	Active         bool           `json:"active" db:"active"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Service manages webhook registrations.
type Service interface {
	Create(ctx context.Context, organizationID, url, secret string, events []string) (Webhook, error)
	Get(ctx context.Context, organizationID, id string) (Webhook, error)
	List(ctx context.Context, organizationID string) ([]Webhook, error)
	Delete(ctx context.Context, organizationID, id string) error
	ForEvent(ctx context.Context, organizationID, event string) ([]Webhook, error)
}

type service struct {
	db *sqlx.DB
}

// NewService creates a Postgres-backed webhooks service.
func NewService(db *sqlx.DB) Service {
	return &service{db: db}
}

func (s *service) Create(ctx context.Context, organizationID, url, secret string, events []string) (Webhook, error) {
	for _, e := range events {
		if !KnownEvent(e) {
			return Webhook{}, fmt.Errorf("unknown event type %q", e)
		}
	}
	w := Webhook{
		OrganizationID: organizationID,
		URL:            url,
		Secret:         secret,
		Events:         events,
		Active:         true,
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO webhooks (organization_id, url, secret, events, active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		organizationID, url, secret, pq.Array(events), true,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return Webhook{}, fmt.Errorf("create webhook: %w", err)
	}
	return w, nil
}

func (s *service) Get(ctx context.Context, organizationID, id string) (Webhook, error) {
	var w Webhook
	err := s.db.GetContext(ctx, &w,
		`SELECT * FROM webhooks WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Webhook{}, ErrNotFound
	}
	if err != nil {
		return Webhook{}, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (s *service) List(ctx context.Context, organizationID string) ([]Webhook, error) {
	var hooks []Webhook
	err := s.db.SelectContext(ctx, &hooks,
		`SELECT * FROM webhooks WHERE organization_id = $1 ORDER BY created_at DESC`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return hooks, nil
}

func (s *service) Delete(ctx context.Context, organizationID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM webhooks WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *service) ForEvent(ctx context.Context, organizationID, event string) ([]Webhook, error) {
	var hooks []Webhook
	err := s.db.SelectContext(ctx, &hooks,
		`SELECT * FROM webhooks WHERE organization_id = $1 AND active = true AND $2 = ANY(events)`,
		organizationID, event)
	if err != nil {
		return nil, fmt.Errorf("webhooks for event: %w", err)
	}
	return hooks, nil
}
