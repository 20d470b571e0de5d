package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openclose/ledger/internal/authz"
	"github.com/openclose/ledger/internal/period"
)

type fakeStore struct {
	accounts map[string]Account
	entries  map[string]JournalEntry
	txns     map[string]IntercompanyTransaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]Account),
		entries:  make(map[string]JournalEntry),
		txns:     make(map[string]IntercompanyTransaction),
	}
}

func (f *fakeStore) CreateAccount(ctx context.Context, a Account) (Account, error) {
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeStore) GetAccount(ctx context.Context, organizationID, id string) (Account, error) {
	a, ok := f.accounts[id]
	if !ok || a.OrganizationID != organizationID {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeStore) ListAccounts(ctx context.Context, organizationID string) ([]Account, error) {
	var out []Account
	for _, a := range f.accounts {
		if a.OrganizationID == organizationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateAccount(ctx context.Context, a Account) error {
	if _, ok := f.accounts[a.ID]; !ok {
		return ErrAccountNotFound
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeStore) DeleteAccount(ctx context.Context, organizationID, id string) error {
	if _, ok := f.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) AccountLineCount(ctx context.Context, organizationID, id string) (int, error) {
	n := 0
	for _, e := range f.entries {
		if e.OrganizationID != organizationID {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == id {
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeStore) CreateEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	if e.ID == "" {
		e.ID = "e" + time.Now().Format("150405.000000000")
	}
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeStore) GetEntry(ctx context.Context, organizationID, id string) (JournalEntry, error) {
	e, ok := f.entries[id]
	if !ok || e.OrganizationID != organizationID {
		return JournalEntry{}, ErrEntryNotFound
	}
	return e, nil
}

func (f *fakeStore) ListEntries(ctx context.Context, organizationID, periodID string) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range f.entries {
		if e.OrganizationID != organizationID {
			continue
		}
		if periodID != "" && e.PeriodID != periodID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) ReplaceEntry(ctx context.Context, e JournalEntry) error {
	existing, ok := f.entries[e.ID]
	if !ok || existing.Status != EntryDraft {
		return ErrEntryNotFound
	}
	e.Status = existing.Status
	f.entries[e.ID] = e
	return nil
}

func (f *fakeStore) SetEntryStatus(ctx context.Context, organizationID, id, status string) error {
	e, ok := f.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = status
	f.entries[id] = e
	return nil
}

func (f *fakeStore) DeleteEntry(ctx context.Context, organizationID, id string) error {
	if _, ok := f.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeStore) CreateIntercompany(ctx context.Context, t IntercompanyTransaction) (IntercompanyTransaction, error) {
	if t.ID == "" {
		t.ID = "t1"
	}
	f.txns[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetIntercompany(ctx context.Context, id string) (IntercompanyTransaction, error) {
	t, ok := f.txns[id]
	if !ok {
		return IntercompanyTransaction{}, ErrTxnNotFound
	}
	return t, nil
}

func (f *fakeStore) ListIntercompany(ctx context.Context, organizationID string) ([]IntercompanyTransaction, error) {
	var out []IntercompanyTransaction
	for _, t := range f.txns {
		if t.SourceOrgID == organizationID || t.TargetOrgID == organizationID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) DecideIntercompany(ctx context.Context, id, status, decidedBy string) error {
	t, ok := f.txns[id]
	if !ok || t.Status != IntercompanyPending {
		return ErrTxnAlreadyDecided
	}
	t.Status = status
	t.DecidedBy = &decidedBy
	f.txns[id] = t
	return nil
}

// fakePeriods is a minimal period.Service over a fixed set of periods.
type fakePeriods struct {
	periods map[string]period.FiscalPeriod
}

func (f *fakePeriods) Get(ctx context.Context, organizationID, id string) (period.FiscalPeriod, error) {
	p, ok := f.periods[id]
	if !ok || p.OrganizationID != organizationID {
		return period.FiscalPeriod{}, period.ErrNotFound
	}
	return p, nil
}

func (f *fakePeriods) Create(ctx context.Context, p period.FiscalPeriod) (period.FiscalPeriod, error) {
	return p, nil
}

func (f *fakePeriods) List(ctx context.Context, organizationID string) ([]period.FiscalPeriod, error) {
	return nil, nil
}

func (f *fakePeriods) Update(ctx context.Context, p period.FiscalPeriod) error { return nil }

func (f *fakePeriods) Close(ctx context.Context, organizationID, id string) error { return nil }

func (f *fakePeriods) Lock(ctx context.Context, organizationID, id string) error { return nil }

func (f *fakePeriods) Reopen(ctx context.Context, organizationID, id string) error { return nil }

func (f *fakePeriods) ResourceContext(ctx context.Context, organizationID, id string) (authz.ResourceContext, error) {
	p, err := f.Get(ctx, organizationID, id)
	if err != nil {
		return authz.ResourceContext{}, err
	}
	return period.PeriodResource(p), nil
}

type fakeNotifier struct {
	posted []string
}

func (f *fakeNotifier) EntryPosted(ctx context.Context, e JournalEntry) {
	f.posted = append(f.posted, e.ID)
}

func setup(t *testing.T, periodStatus string) (*fakeStore, *fakeNotifier, Service) {
	t.Helper()
	store := newFakeStore()
	store.accounts["cash"] = Account{ID: "cash", OrganizationID: "org1", Code: "1000", Name: "Cash", Type: AccountAsset, IsActive: true}
	store.accounts["rev"] = Account{ID: "rev", OrganizationID: "org1", Code: "4000", Name: "Revenue", Type: AccountRevenue, IsActive: true}

	periods := &fakePeriods{periods: map[string]period.FiscalPeriod{
		"p1": {ID: "p1", OrganizationID: "org1", Name: "2026-03", Status: periodStatus},
	}}
	notifier := &fakeNotifier{}
	return store, notifier, NewService(store, periods, notifier)
}

func balancedLines() []JournalLine {
	return []JournalLine{
		{AccountID: "cash", Debit: 5000},
		{AccountID: "rev", Credit: 5000},
	}
}

func TestCreateEntryValidatesBalance(t *testing.T) {
	_, _, svc := setup(t, period.StatusOpen)
	ctx := context.Background()

	base := JournalEntry{OrganizationID: "org1", PeriodID: "p1", EntryDate: time.Now()}

	e := base
	e.Lines = []JournalLine{{AccountID: "cash", Debit: 5000}, {AccountID: "rev", Credit: 4000}}
	if _, err := svc.CreateEntry(ctx, e); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("expected ErrUnbalancedEntry, got %v", err)
	}

	e = base
	e.Lines = []JournalLine{{AccountID: "cash", Debit: 5000}}
	if _, err := svc.CreateEntry(ctx, e); !errors.Is(err, ErrEmptyEntry) {
		t.Fatalf("expected ErrEmptyEntry, got %v", err)
	}

	// A line with both sides set is malformed even if totals balance.
	e = base
	e.Lines = []JournalLine{
		{AccountID: "cash", Debit: 5000, Credit: 5000},
		{AccountID: "rev"},
	}
	if _, err := svc.CreateEntry(ctx, e); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("expected ErrUnbalancedEntry for mixed line, got %v", err)
	}

	e = base
	e.Lines = balancedLines()
	created, err := svc.CreateEntry(ctx, e)
	if err != nil {
		t.Fatalf("balanced entry rejected: %v", err)
	}
	if created.Status != EntryDraft {
		t.Fatalf("new entries must start as draft, got %s", created.Status)
	}
}

func TestCreateEntryRejectsInactiveAccount(t *testing.T) {
	store, _, svc := setup(t, period.StatusOpen)
	a := store.accounts["rev"]
	a.IsActive = false
	store.accounts["rev"] = a

	_, err := svc.CreateEntry(context.Background(), JournalEntry{
		OrganizationID: "org1", PeriodID: "p1", EntryDate: time.Now(),
		Lines: balancedLines(),
	})
	if err == nil {
		t.Fatal("expected error for inactive account")
	}
}

func TestPostEntryRequiresOpenPeriod(t *testing.T) {
	for _, status := range []string{period.StatusClosed, period.StatusLocked} {
		_, _, svc := setup(t, status)
		e, err := svc.CreateEntry(context.Background(), JournalEntry{
			OrganizationID: "org1", PeriodID: "p1", EntryDate: time.Now(),
			Lines: balancedLines(),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := svc.PostEntry(context.Background(), "org1", e.ID); !errors.Is(err, ErrPeriodNotOpen) {
			t.Fatalf("period %s: expected ErrPeriodNotOpen, got %v", status, err)
		}
	}
}

func TestPostEntryLifecycle(t *testing.T) {
	store, notifier, svc := setup(t, period.StatusOpen)
	ctx := context.Background()

	e, err := svc.CreateEntry(ctx, JournalEntry{
		OrganizationID: "org1", PeriodID: "p1", EntryDate: time.Now(),
		Lines: balancedLines(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.PostEntry(ctx, "org1", e.ID); err != nil {
		t.Fatalf("post: %v", err)
	}
	if got := store.entries[e.ID].Status; got != EntryPosted {
		t.Fatalf("expected posted, got %s", got)
	}
	if len(notifier.posted) != 1 {
		t.Fatalf("expected post notification, got %v", notifier.posted)
	}

	if err := svc.PostEntry(ctx, "org1", e.ID); !errors.Is(err, ErrEntryNotDraft) {
		t.Fatalf("double post should fail with ErrEntryNotDraft, got %v", err)
	}
	if err := svc.UpdateEntry(ctx, JournalEntry{ID: e.ID, OrganizationID: "org1", PeriodID: "p1", Lines: balancedLines()}); !errors.Is(err, ErrEntryNotDraft) {
		t.Fatalf("updating a posted entry should fail, got %v", err)
	}
	if err := svc.DeleteEntry(ctx, "org1", e.ID); !errors.Is(err, ErrEntryNotDraft) {
		t.Fatalf("deleting a posted entry should fail, got %v", err)
	}

	if err := svc.VoidEntry(ctx, "org1", e.ID); err != nil {
		t.Fatalf("void: %v", err)
	}
	if err := svc.VoidEntry(ctx, "org1", e.ID); !errors.Is(err, ErrEntryNotPosted) {
		t.Fatalf("double void should fail with ErrEntryNotPosted, got %v", err)
	}
}

func TestVoidBlockedOnLockedPeriod(t *testing.T) {
	store, _, svc := setup(t, period.StatusLocked)
	store.entries["e1"] = JournalEntry{
		ID: "e1", OrganizationID: "org1", PeriodID: "p1",
		Status: EntryPosted, Lines: balancedLines(),
	}
	if err := svc.VoidEntry(context.Background(), "org1", "e1"); !errors.Is(err, ErrPeriodNotOpen) {
		t.Fatalf("void in locked period should fail, got %v", err)
	}
}

func TestEntryResourceAttributes(t *testing.T) {
	store, _, svc := setup(t, period.StatusLocked)
	store.entries["e1"] = JournalEntry{
		ID: "e1", OrganizationID: "org1", PeriodID: "p1", CreatedBy: "u1",
		Status: EntryPosted, Lines: balancedLines(),
	}

	rc, err := svc.EntryResource(context.Background(), "org1", "e1")
	if err != nil {
		t.Fatalf("entry resource: %v", err)
	}
	if rc.Type != authz.ResourceJournalEntry || rc.ID != "e1" {
		t.Fatalf("unexpected resource identity: %+v", rc)
	}
	if rc.Attributes["periodStatus"] != period.StatusLocked {
		t.Fatalf("expected periodStatus Locked, got %v", rc.Attributes["periodStatus"])
	}
	if rc.Attributes["entryStatus"] != EntryPosted {
		t.Fatalf("expected entryStatus posted, got %v", rc.Attributes["entryStatus"])
	}
	if rc.Attributes["amount"] != int64(5000) {
		t.Fatalf("expected amount 5000, got %v", rc.Attributes["amount"])
	}
}

func TestIntercompanyApprovalScopedToTargetOrg(t *testing.T) {
	store, _, svc := setup(t, period.StatusOpen)
	ctx := context.Background()

	txn, err := svc.CreateIntercompany(ctx, IntercompanyTransaction{
		SourceOrgID: "org1", TargetOrgID: "org2", Amount: 1000, Currency: "USD", CreatedBy: "u1",
	})
	if err != nil {
		t.Fatalf("create intercompany: %v", err)
	}

	// The source organization cannot decide its own transaction.
	if err := svc.ApproveIntercompany(ctx, "org1", txn.ID, "u1"); !errors.Is(err, ErrTxnNotFound) {
		t.Fatalf("source org approval should miss, got %v", err)
	}

	if err := svc.ApproveIntercompany(ctx, "org2", txn.ID, "u9"); err != nil {
		t.Fatalf("target org approval failed: %v", err)
	}
	if got := store.txns[txn.ID].Status; got != IntercompanyApproved {
		t.Fatalf("expected approved, got %s", got)
	}

	if err := svc.RejectIntercompany(ctx, "org2", txn.ID, "u9"); !errors.Is(err, ErrTxnAlreadyDecided) {
		t.Fatalf("deciding twice should fail, got %v", err)
	}
}

func TestCreateIntercompanyValidation(t *testing.T) {
	_, _, svc := setup(t, period.StatusOpen)
	ctx := context.Background()

	if _, err := svc.CreateIntercompany(ctx, IntercompanyTransaction{
		SourceOrgID: "org1", TargetOrgID: "org1", Amount: 100, Currency: "USD",
	}); err == nil {
		t.Fatal("expected error for matching source and target org")
	}
	if _, err := svc.CreateIntercompany(ctx, IntercompanyTransaction{
		SourceOrgID: "org1", TargetOrgID: "org2", Amount: 0, Currency: "USD",
	}); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
}

func TestDeleteAccount(t *testing.T) {
	_, _, svc := setup(t, period.StatusOpen)
	ctx := context.Background()

	e := JournalEntry{OrganizationID: "org1", PeriodID: "p1", EntryDate: time.Now(), Lines: balancedLines()}
	if _, err := svc.CreateEntry(ctx, e); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	if err := svc.DeleteAccount(ctx, "org1", "cash"); !errors.Is(err, ErrAccountInUse) {
		t.Fatalf("expected ErrAccountInUse for account with activity, got %v", err)
	}

	unused, err := svc.CreateAccount(ctx, Account{ID: "ap", OrganizationID: "org1", Code: "2000", Name: "Payables", Type: AccountLiability})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := svc.DeleteAccount(ctx, "org1", unused.ID); err != nil {
		t.Fatalf("delete unused account: %v", err)
	}
	if _, err := svc.GetAccount(ctx, "org1", unused.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("account should be gone, got %v", err)
	}

	if err := svc.DeleteAccount(ctx, "org1", "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
