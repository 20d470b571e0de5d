package period

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	periods map[string]FiscalPeriod
}

func newFakeStore(periods ...FiscalPeriod) *fakeStore {
	s := &fakeStore{periods: make(map[string]FiscalPeriod)}
	for _, p := range periods {
		s.periods[p.ID] = p
	}
	return s
}

func (f *fakeStore) Create(ctx context.Context, p FiscalPeriod) (FiscalPeriod, error) {
	if p.Status == "" {
		p.Status = StatusOpen
	}
	f.periods[p.ID] = p
	return p, nil
}

func (f *fakeStore) Get(ctx context.Context, organizationID, id string) (FiscalPeriod, error) {
	p, ok := f.periods[id]
	if !ok || p.OrganizationID != organizationID {
		return FiscalPeriod{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) List(ctx context.Context, organizationID string) ([]FiscalPeriod, error) {
	var out []FiscalPeriod
	for _, p := range f.periods {
		if p.OrganizationID == organizationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, p FiscalPeriod) error {
	existing, ok := f.periods[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.Status = existing.Status
	f.periods[p.ID] = p
	return nil
}

func (f *fakeStore) SetStatus(ctx context.Context, organizationID, id, status string) error {
	p, ok := f.periods[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	f.periods[id] = p
	return nil
}

type fakeNotifier struct {
	locked []string
}

func (f *fakeNotifier) PeriodLocked(ctx context.Context, p FiscalPeriod) {
	f.locked = append(f.locked, p.ID)
}

func openPeriod(id string) FiscalPeriod {
	return FiscalPeriod{
		ID: id, OrganizationID: "org1", Name: "2026-03",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    StatusOpen,
	}
}

func TestCreateValidatesDates(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	p := openPeriod("p1")
	p.EndDate = p.StartDate
	if _, err := svc.Create(context.Background(), p); err == nil {
		t.Fatal("expected error for end date not after start date")
	}

	p = openPeriod("p2")
	p.Name = ""
	if _, err := svc.Create(context.Background(), p); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(openPeriod("p1"))
	svc := NewService(store, nil)

	if err := svc.Close(ctx, "org1", "p1"); err != nil {
		t.Fatalf("close open period: %v", err)
	}
	if err := svc.Close(ctx, "org1", "p1"); err == nil {
		t.Fatal("closing a closed period should fail")
	}
	if err := svc.Lock(ctx, "org1", "p1"); err != nil {
		t.Fatalf("lock closed period: %v", err)
	}
	if err := svc.Reopen(ctx, "org1", "p1"); err != nil {
		t.Fatalf("reopen locked period: %v", err)
	}

	var transition *ErrInvalidTransition
	err := svc.Reopen(ctx, "org1", "p1")
	if !errors.As(err, &transition) {
		t.Fatalf("reopening an open period should fail with ErrInvalidTransition, got %v", err)
	}
}

func TestLockNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewService(newFakeStore(openPeriod("p1")), notifier)

	if err := svc.Lock(context.Background(), "org1", "p1"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if len(notifier.locked) != 1 || notifier.locked[0] != "p1" {
		t.Fatalf("expected lock notification for p1, got %v", notifier.locked)
	}
}

func TestUpdateRefusedWhenLocked(t *testing.T) {
	p := openPeriod("p1")
	p.Status = StatusLocked
	svc := NewService(newFakeStore(p), nil)

	p.Name = "renamed"
	err := svc.Update(context.Background(), p)
	var transition *ErrInvalidTransition
	if !errors.As(err, &transition) {
		t.Fatalf("updating a locked period should fail, got %v", err)
	}
}

func TestResourceContextCarriesStatus(t *testing.T) {
	p := openPeriod("p1")
	p.Status = StatusLocked
	svc := NewService(newFakeStore(p), nil)

	rc, err := svc.ResourceContext(context.Background(), "org1", "p1")
	if err != nil {
		t.Fatalf("resource context: %v", err)
	}
	if rc.ID != "p1" {
		t.Fatalf("unexpected resource id %s", rc.ID)
	}
	if rc.Attributes["periodStatus"] != StatusLocked {
		t.Fatalf("expected periodStatus Locked, got %v", rc.Attributes["periodStatus"])
	}

	if _, err := svc.ResourceContext(context.Background(), "org2", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-organization lookup should miss, got %v", err)
	}
}
