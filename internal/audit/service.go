package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/openclose/ledger/internal/authz"
)

// Publisher receives denial events for asynchronous fan-out (webhooks).
// The audit write itself is synchronous; publication is best-effort.
type Publisher interface {
	PublishDenial(ctx context.Context, d Denial)
}

// Service records and retrieves denial audit entries. It implements the
// authorization service's AuditStore contract.
type Service interface {
	LogDenial(ctx context.Context, entry authz.DenialEntry) error
	Query(ctx context.Context, params QueryParams) ([]Denial, int, error)
	Export(ctx context.Context, params QueryParams) ([]Denial, error)
	Get(ctx context.Context, organizationID, id string) (Denial, error)
}

type service struct {
	store     Store
	publisher Publisher
}

// NewService creates a new audit service. publisher may be nil.
func NewService(store Store, publisher Publisher) Service {
	return &service{store: store, publisher: publisher}
}

// LogDenial appends one denial row. A returned error means the entry was not
// durably recorded and the caller must fail its check.
func (s *service) LogDenial(ctx context.Context, entry authz.DenialEntry) error {
	if entry.OrganizationID == "" {
		return fmt.Errorf("organization id is required")
	}
	if entry.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if entry.Action == "" {
		return fmt.Errorf("action is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	d := fromEntry(entry)
	id, err := s.store.LogDenial(ctx, d)
	if err != nil {
		return fmt.Errorf("log denial: %w", err)
	}
	d.ID = id

	if s.publisher != nil {
		s.publisher.PublishDenial(ctx, d)
	}
	return nil
}

func (s *service) Query(ctx context.Context, params QueryParams) ([]Denial, int, error) {
	if params.Limit == 0 {
		params.Limit = 100
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}
	return s.store.Query(ctx, params)
}

func (s *service) Export(ctx context.Context, params QueryParams) ([]Denial, error) {
	params.Limit = 10000
	params.Offset = 0
	denials, _, err := s.store.Query(ctx, params)
	return denials, err
}

func (s *service) Get(ctx context.Context, organizationID, id string) (Denial, error) {
	return s.store.Get(ctx, organizationID, id)
}
