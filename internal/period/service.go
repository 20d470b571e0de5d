package period

import (
	"context"
	"fmt"

	"github.com/openclose/ledger/internal/authz"
)

// ErrInvalidTransition is returned when a status change is not permitted from
// the period's current status.
type ErrInvalidTransition struct {
	From, To string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot transition fiscal period from %s to %s", e.From, e.To)
}

// Notifier is told when a period becomes locked so external systems (webhooks)
// can react. May be nil.
type Notifier interface {
	PeriodLocked(ctx context.Context, p FiscalPeriod)
}

// Service manages fiscal periods and supplies their attributes to
// authorization checks.
type Service interface {
	Create(ctx context.Context, p FiscalPeriod) (FiscalPeriod, error)
	Get(ctx context.Context, organizationID, id string) (FiscalPeriod, error)
	List(ctx context.Context, organizationID string) ([]FiscalPeriod, error)
	Update(ctx context.Context, p FiscalPeriod) error
	Close(ctx context.Context, organizationID, id string) error
	Lock(ctx context.Context, organizationID, id string) error
	Reopen(ctx context.Context, organizationID, id string) error

	// ResourceContext builds the authorization resource context for one
	// period, injecting periodStatus so policies can gate on lock state.
	ResourceContext(ctx context.Context, organizationID, id string) (authz.ResourceContext, error)
}

type service struct {
	store    Store
	notifier Notifier
}

// NewService creates a new fiscal period service.
func NewService(store Store, notifier Notifier) Service {
	return &service{store: store, notifier: notifier}
}

func (s *service) Create(ctx context.Context, p FiscalPeriod) (FiscalPeriod, error) {
	if p.Name == "" {
		return FiscalPeriod{}, fmt.Errorf("period name is required")
	}
	if !p.EndDate.After(p.StartDate) {
		return FiscalPeriod{}, fmt.Errorf("period end date must be after start date")
	}
	return s.store.Create(ctx, p)
}

func (s *service) Get(ctx context.Context, organizationID, id string) (FiscalPeriod, error) {
	return s.store.Get(ctx, organizationID, id)
}

func (s *service) List(ctx context.Context, organizationID string) ([]FiscalPeriod, error) {
	return s.store.List(ctx, organizationID)
}

func (s *service) Update(ctx context.Context, p FiscalPeriod) error {
	existing, err := s.store.Get(ctx, p.OrganizationID, p.ID)
	if err != nil {
		return err
	}
	if existing.Status == StatusLocked {
		return &ErrInvalidTransition{From: StatusLocked, To: StatusLocked}
	}
	return s.store.Update(ctx, p)
}

func (s *service) Close(ctx context.Context, organizationID, id string) error {
	return s.transition(ctx, organizationID, id, StatusClosed, StatusOpen)
}

func (s *service) Lock(ctx context.Context, organizationID, id string) error {
	if err := s.transition(ctx, organizationID, id, StatusLocked, StatusOpen, StatusClosed); err != nil {
		return err
	}
	if s.notifier != nil {
		if p, err := s.store.Get(ctx, organizationID, id); err == nil {
			s.notifier.PeriodLocked(ctx, p)
		}
	}
	return nil
}

func (s *service) Reopen(ctx context.Context, organizationID, id string) error {
	return s.transition(ctx, organizationID, id, StatusOpen, StatusClosed, StatusLocked)
}

func (s *service) transition(ctx context.Context, organizationID, id, to string, validFrom ...string) error {
	p, err := s.store.Get(ctx, organizationID, id)
	if err != nil {
		return err
	}
	ok := false
	for _, from := range validFrom {
		if p.Status == from {
			ok = true
			break
		}
	}
	if !ok {
		return &ErrInvalidTransition{From: p.Status, To: to}
	}
	return s.store.SetStatus(ctx, organizationID, id, to)
}

func (s *service) ResourceContext(ctx context.Context, organizationID, id string) (authz.ResourceContext, error) {
	p, err := s.store.Get(ctx, organizationID, id)
	if err != nil {
		return authz.ResourceContext{}, err
	}
	return PeriodResource(p), nil
}

// PeriodResource converts a period into an authorization resource context.
func PeriodResource(p FiscalPeriod) authz.ResourceContext {
	return authz.ResourceContext{
		Type: authz.ResourceFiscalPeriod,
		ID:   p.ID,
		Attributes: map[string]any{
			"periodStatus": p.Status,
			"name":         p.Name,
		},
	}
}
