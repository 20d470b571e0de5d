package ledger

import (
	"context"
	"fmt"

	"github.com/openclose/ledger/internal/authz"
	"github.com/openclose/ledger/internal/period"
)

// Notifier is told when an entry is posted so external systems (webhooks) can
// react. May be nil.
type Notifier interface {
	EntryPosted(ctx context.Context, e JournalEntry)
}

// Service manages the chart of accounts, journal entries and intercompany
// transactions for one organization per call.
type Service interface {
	CreateAccount(ctx context.Context, a Account) (Account, error)
	GetAccount(ctx context.Context, organizationID, id string) (Account, error)
	ListAccounts(ctx context.Context, organizationID string) ([]Account, error)
	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, organizationID, id string) error

	CreateEntry(ctx context.Context, e JournalEntry) (JournalEntry, error)
	GetEntry(ctx context.Context, organizationID, id string) (JournalEntry, error)
	ListEntries(ctx context.Context, organizationID, periodID string) ([]JournalEntry, error)
	UpdateEntry(ctx context.Context, e JournalEntry) error
	PostEntry(ctx context.Context, organizationID, id string) error
	VoidEntry(ctx context.Context, organizationID, id string) error
	DeleteEntry(ctx context.Context, organizationID, id string) error

	CreateIntercompany(ctx context.Context, t IntercompanyTransaction) (IntercompanyTransaction, error)
	ListIntercompany(ctx context.Context, organizationID string) ([]IntercompanyTransaction, error)
	ApproveIntercompany(ctx context.Context, organizationID, id, decidedBy string) error
	RejectIntercompany(ctx context.Context, organizationID, id, decidedBy string) error

	// EntryResource builds the authorization resource context for one entry,
	// injecting entryStatus and the owning period's periodStatus so policies
	// can gate posting against locked periods.
	EntryResource(ctx context.Context, organizationID, id string) (authz.ResourceContext, error)
}

type service struct {
	store    Store
	periods  period.Service
	notifier Notifier
}

// NewService creates a new ledger service.
func NewService(store Store, periods period.Service, notifier Notifier) Service {
	return &service{store: store, periods: periods, notifier: notifier}
}

func (s *service) CreateAccount(ctx context.Context, a Account) (Account, error) {
	if err := validateAccountType(a.Type); err != nil {
		return Account{}, err
	}
	if a.Code == "" || a.Name == "" {
		return Account{}, fmt.Errorf("account code and name are required")
	}
	a.IsActive = true
	return s.store.CreateAccount(ctx, a)
}

func (s *service) GetAccount(ctx context.Context, organizationID, id string) (Account, error) {
	return s.store.GetAccount(ctx, organizationID, id)
}

func (s *service) ListAccounts(ctx context.Context, organizationID string) ([]Account, error) {
	return s.store.ListAccounts(ctx, organizationID)
}

func (s *service) UpdateAccount(ctx context.Context, a Account) error {
	if err := validateAccountType(a.Type); err != nil {
		return err
	}
	return s.store.UpdateAccount(ctx, a)
}

// DeleteAccount removes an account that has never appeared on a journal line.
// Accounts with activity must be deactivated instead.
func (s *service) DeleteAccount(ctx context.Context, organizationID, id string) error {
	if _, err := s.store.GetAccount(ctx, organizationID, id); err != nil {
		return err
	}
	n, err := s.store.AccountLineCount(ctx, organizationID, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrAccountInUse
	}
	return s.store.DeleteAccount(ctx, organizationID, id)
}

func validateAccountType(t string) error {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return nil
	}
	return fmt.Errorf("unknown account type %q", t)
}

func (s *service) CreateEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	if err := validateLines(e.Lines); err != nil {
		return JournalEntry{}, err
	}
	if err := s.checkAccounts(ctx, e.OrganizationID, e.Lines); err != nil {
		return JournalEntry{}, err
	}
	if _, err := s.periods.Get(ctx, e.OrganizationID, e.PeriodID); err != nil {
		return JournalEntry{}, err
	}
	e.Status = EntryDraft
	return s.store.CreateEntry(ctx, e)
}

func (s *service) GetEntry(ctx context.Context, organizationID, id string) (JournalEntry, error) {
	return s.store.GetEntry(ctx, organizationID, id)
}

func (s *service) ListEntries(ctx context.Context, organizationID, periodID string) ([]JournalEntry, error) {
	return s.store.ListEntries(ctx, organizationID, periodID)
}

func (s *service) UpdateEntry(ctx context.Context, e JournalEntry) error {
	existing, err := s.store.GetEntry(ctx, e.OrganizationID, e.ID)
	if err != nil {
		return err
	}
	if existing.Status != EntryDraft {
		return ErrEntryNotDraft
	}
	if err := validateLines(e.Lines); err != nil {
		return err
	}
	if err := s.checkAccounts(ctx, e.OrganizationID, e.Lines); err != nil {
		return err
	}
	return s.store.ReplaceEntry(ctx, e)
}

// PostEntry moves a draft entry into the books. The owning period must be
// open.
func (s *service) PostEntry(ctx context.Context, organizationID, id string) error {
	e, err := s.store.GetEntry(ctx, organizationID, id)
	if err != nil {
		return err
	}
	if e.Status != EntryDraft {
		return ErrEntryNotDraft
	}
	if err := validateLines(e.Lines); err != nil {
		return err
	}
	p, err := s.periods.Get(ctx, organizationID, e.PeriodID)
	if err != nil {
		return err
	}
	if p.Status != period.StatusOpen {
		return ErrPeriodNotOpen
	}
	if err := s.store.SetEntryStatus(ctx, organizationID, id, EntryPosted); err != nil {
		return err
	}
	if s.notifier != nil {
		if posted, err := s.store.GetEntry(ctx, organizationID, id); err == nil {
			s.notifier.EntryPosted(ctx, posted)
		}
	}
	return nil
}

// VoidEntry reverses a posted entry. Voiding is allowed while the period is
// open or closed but not once it is locked.
func (s *service) VoidEntry(ctx context.Context, organizationID, id string) error {
	e, err := s.store.GetEntry(ctx, organizationID, id)
	if err != nil {
		return err
	}
	if e.Status != EntryPosted {
		return ErrEntryNotPosted
	}
	p, err := s.periods.Get(ctx, organizationID, e.PeriodID)
	if err != nil {
		return err
	}
	if p.Status == period.StatusLocked {
		return ErrPeriodNotOpen
	}
	return s.store.SetEntryStatus(ctx, organizationID, id, EntryVoid)
}

func (s *service) DeleteEntry(ctx context.Context, organizationID, id string) error {
	e, err := s.store.GetEntry(ctx, organizationID, id)
	if err != nil {
		return err
	}
	if e.Status != EntryDraft {
		return ErrEntryNotDraft
	}
	return s.store.DeleteEntry(ctx, organizationID, id)
}

func (s *service) checkAccounts(ctx context.Context, organizationID string, lines []JournalLine) error {
	for _, l := range lines {
		a, err := s.store.GetAccount(ctx, organizationID, l.AccountID)
		if err != nil {
			return err
		}
		if !a.IsActive {
			return fmt.Errorf("account %s is inactive", a.Code)
		}
	}
	return nil
}

func (s *service) CreateIntercompany(ctx context.Context, t IntercompanyTransaction) (IntercompanyTransaction, error) {
	if t.Amount <= 0 {
		return IntercompanyTransaction{}, fmt.Errorf("intercompany amount must be positive")
	}
	if t.SourceOrgID == t.TargetOrgID {
		return IntercompanyTransaction{}, fmt.Errorf("source and target organization must differ")
	}
	t.Status = IntercompanyPending
	return s.store.CreateIntercompany(ctx, t)
}

func (s *service) ListIntercompany(ctx context.Context, organizationID string) ([]IntercompanyTransaction, error) {
	return s.store.ListIntercompany(ctx, organizationID)
}

// ApproveIntercompany records the target organization's approval. The caller
// must belong to the transaction's target organization.
func (s *service) ApproveIntercompany(ctx context.Context, organizationID, id, decidedBy string) error {
	return s.decideIntercompany(ctx, organizationID, id, IntercompanyApproved, decidedBy)
}

func (s *service) RejectIntercompany(ctx context.Context, organizationID, id, decidedBy string) error {
	return s.decideIntercompany(ctx, organizationID, id, IntercompanyRejected, decidedBy)
}

func (s *service) decideIntercompany(ctx context.Context, organizationID, id, status, decidedBy string) error {
	t, err := s.store.GetIntercompany(ctx, id)
	if err != nil {
		return err
	}
	if t.TargetOrgID != organizationID {
		return ErrTxnNotFound
	}
	if t.Status != IntercompanyPending {
		return ErrTxnAlreadyDecided
	}
	return s.store.DecideIntercompany(ctx, id, status, decidedBy)
}

func (s *service) EntryResource(ctx context.Context, organizationID, id string) (authz.ResourceContext, error) {
	e, err := s.store.GetEntry(ctx, organizationID, id)
	if err != nil {
		return authz.ResourceContext{}, err
	}
	p, err := s.periods.Get(ctx, organizationID, e.PeriodID)
	if err != nil {
		return authz.ResourceContext{}, err
	}
	var total int64
	for _, l := range e.Lines {
		total += l.Debit
	}
	return authz.ResourceContext{
		Type: authz.ResourceJournalEntry,
		ID:   e.ID,
		Attributes: map[string]any{
			"entryStatus":  e.Status,
			"periodId":     e.PeriodID,
			"periodStatus": p.Status,
			"amount":       total,
			"createdBy":    e.CreatedBy,
		},
	}, nil
}
