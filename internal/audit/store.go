package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openclose/ledger/internal/authz"
)

// Denial is a stored denial audit row. Rows are append-only: there is no
// update or delete path in this package.
type Denial struct {
	ID               string         `json:"id" db:"id"`
	OrganizationID   string         `json:"organization_id" db:"organization_id"`
	UserID           string         `json:"user_id" db:"user_id"`
	Action           string         `json:"action" db:"action"`
	ResourceType     string         `json:"resource_type" db:"resource_type"`
	ResourceID       *string        `json:"resource_id,omitempty" db:"resource_id"`
	DenialReason     string         `json:"denial_reason" db:"denial_reason"`
	MatchedPolicyIDs pq.StringArray `json:"matched_policy_ids,omitempty" db:"matched_policy_ids"`
	IPAddress        *string        `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent        *string        `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// QueryParams holds parameters for querying denial entries.
type QueryParams struct {
	OrganizationID string
	UserID         *string
	Action         *string
	ResourceType   *string
	StartTime      *time.Time
	EndTime        *time.Time
	Limit          int
	Offset         int
}

// Store defines denial audit storage operations.
type Store interface {
	LogDenial(ctx context.Context, d Denial) (string, error)
	Query(ctx context.Context, params QueryParams) ([]Denial, int, error)
	Get(ctx context.Context, organizationID, id string) (Denial, error)
}

// ErrNotFound is returned when a denial entry does not exist in the
// organization's scope.
var ErrNotFound = errors.New("denial entry not found")

type store struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed denial audit store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

func (s *store) LogDenial(ctx context.Context, d Denial) (string, error) {
	var id string
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO authz_denials (organization_id, user_id, action, resource_type, resource_id, denial_reason, matched_policy_ids, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		d.OrganizationID, d.UserID, d.Action, d.ResourceType, d.ResourceID,
		d.DenialReason, d.MatchedPolicyIDs, d.IPAddress, d.UserAgent, d.CreatedAt,
	).Scan(&id)
	return id, err
}

func (s *store) Query(ctx context.Context, params QueryParams) ([]Denial, int, error) {
	query := `SELECT * FROM authz_denials WHERE organization_id = $1`
	countQuery := `SELECT COUNT(*) FROM authz_denials WHERE organization_id = $1`
	args := []any{params.OrganizationID}

	addFilter := func(clause string, value any) {
		args = append(args, value)
		placeholder := ` $` + itoa(len(args))
		query += ` AND ` + clause + placeholder
		countQuery += ` AND ` + clause + placeholder
	}

	if params.UserID != nil {
		addFilter(`user_id =`, *params.UserID)
	}
	if params.Action != nil {
		addFilter(`action =`, *params.Action)
	}
	if params.ResourceType != nil {
		addFilter(`resource_type =`, *params.ResourceType)
	}
	if params.StartTime != nil {
		addFilter(`created_at >=`, *params.StartTime)
	}
	if params.EndTime != nil {
		addFilter(`created_at <=`, *params.EndTime)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}
	if params.Offset > 0 {
		args = append(args, params.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	var denials []Denial
	if err := s.db.SelectContext(ctx, &denials, query, args...); err != nil {
		return nil, 0, err
	}
	return denials, total, nil
}

func (s *store) Get(ctx context.Context, organizationID, id string) (Denial, error) {
	var d Denial
	err := s.db.GetContext(ctx, &d, `SELECT * FROM authz_denials WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return Denial{}, ErrNotFound
	}
	return d, err
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}

// fromEntry converts the authorization service's denial entry into a storage
// row.
func fromEntry(e authz.DenialEntry) Denial {
	d := Denial{
		OrganizationID:   e.OrganizationID,
		UserID:           e.UserID,
		Action:           string(e.Action),
		ResourceType:     string(e.ResourceType),
		DenialReason:     e.DenialReason,
		MatchedPolicyIDs: pq.StringArray(e.MatchedPolicyIDs),
		CreatedAt:        e.CreatedAt,
	}
	if e.ResourceID != "" {
		d.ResourceID = &e.ResourceID
	}
	if e.IPAddress != "" {
		d.IPAddress = &e.IPAddress
	}
	if e.UserAgent != "" {
		d.UserAgent = &e.UserAgent
	}
	return d
}
