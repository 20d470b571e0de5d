package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openclose/ledger/internal/authz"
)

type fakeStore struct {
	denials []Denial
	err     error
	lastQ   QueryParams
}

func (f *fakeStore) LogDenial(ctx context.Context, d Denial) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	d.ID = "d1"
	f.denials = append(f.denials, d)
	return d.ID, nil
}

func (f *fakeStore) Query(ctx context.Context, params QueryParams) ([]Denial, int, error) {
	f.lastQ = params
	return f.denials, len(f.denials), nil
}

func (f *fakeStore) Get(ctx context.Context, organizationID, id string) (Denial, error) {
	for _, d := range f.denials {
		if d.ID == id && d.OrganizationID == organizationID {
			return d, nil
		}
	}
	return Denial{}, ErrNotFound
}

type fakePublisher struct {
	published []Denial
}

func (f *fakePublisher) PublishDenial(ctx context.Context, d Denial) {
	f.published = append(f.published, d)
}

func entry() authz.DenialEntry {
	return authz.DenialEntry{
		UserID:         "u1",
		OrganizationID: "org1",
		Action:         authz.ActionJournalPost,
		ResourceType:   authz.ResourceJournalEntry,
		DenialReason:   "denied by policy \"freeze\"",
		CreatedAt:      time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC),
	}
}

func TestLogDenialStoresAndPublishes(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewService(store, pub)

	if err := svc.LogDenial(context.Background(), entry()); err != nil {
		t.Fatalf("log denial: %v", err)
	}
	if len(store.denials) != 1 {
		t.Fatalf("expected one stored denial, got %d", len(store.denials))
	}
	if len(pub.published) != 1 || pub.published[0].ID != "d1" {
		t.Fatalf("expected one published denial with store id, got %v", pub.published)
	}
}

func TestLogDenialValidation(t *testing.T) {
	svc := NewService(&fakeStore{}, nil)

	for _, tc := range []struct {
		name   string
		mutate func(*authz.DenialEntry)
	}{
		{"missing org", func(e *authz.DenialEntry) { e.OrganizationID = "" }},
		{"missing user", func(e *authz.DenialEntry) { e.UserID = "" }},
		{"missing action", func(e *authz.DenialEntry) { e.Action = "" }},
	} {
		e := entry()
		tc.mutate(&e)
		if err := svc.LogDenial(context.Background(), e); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLogDenialPropagatesStoreFailure(t *testing.T) {
	sentinel := errors.New("disk full")
	pub := &fakePublisher{}
	svc := NewService(&fakeStore{err: sentinel}, pub)

	err := svc.LogDenial(context.Background(), entry())
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatal("failed writes must not publish events")
	}
}

func TestQueryLimitDefaults(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil)

	if _, _, err := svc.Query(context.Background(), QueryParams{OrganizationID: "org1"}); err != nil {
		t.Fatalf("query: %v", err)
	}
	if store.lastQ.Limit != 100 {
		t.Fatalf("expected default limit 100, got %d", store.lastQ.Limit)
	}

	if _, _, err := svc.Query(context.Background(), QueryParams{OrganizationID: "org1", Limit: 5000}); err != nil {
		t.Fatalf("query: %v", err)
	}
	if store.lastQ.Limit != 1000 {
		t.Fatalf("expected limit capped at 1000, got %d", store.lastQ.Limit)
	}
}

func TestExportOverridesPaging(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil)

	if _, err := svc.Export(context.Background(), QueryParams{OrganizationID: "org1", Limit: 5, Offset: 50}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if store.lastQ.Limit != 10000 || store.lastQ.Offset != 0 {
		t.Fatalf("export should scan from the start, got limit=%d offset=%d", store.lastQ.Limit, store.lastQ.Offset)
	}
}
