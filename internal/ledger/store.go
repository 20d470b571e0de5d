package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store defines ledger storage operations. Journal entry writes that touch
// both the entry row and its lines run in a single transaction.
type Store interface {
	CreateAccount(ctx context.Context, a Account) (Account, error)
	GetAccount(ctx context.Context, organizationID, id string) (Account, error)
	ListAccounts(ctx context.Context, organizationID string) ([]Account, error)
	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, organizationID, id string) error
	AccountLineCount(ctx context.Context, organizationID, id string) (int, error)

	CreateEntry(ctx context.Context, e JournalEntry) (JournalEntry, error)
	GetEntry(ctx context.Context, organizationID, id string) (JournalEntry, error)
	ListEntries(ctx context.Context, organizationID, periodID string) ([]JournalEntry, error)
	ReplaceEntry(ctx context.Context, e JournalEntry) error
	SetEntryStatus(ctx context.Context, organizationID, id, status string) error
	DeleteEntry(ctx context.Context, organizationID, id string) error

	CreateIntercompany(ctx context.Context, t IntercompanyTransaction) (IntercompanyTransaction, error)
	GetIntercompany(ctx context.Context, id string) (IntercompanyTransaction, error)
	ListIntercompany(ctx context.Context, organizationID string) ([]IntercompanyTransaction, error)
	DecideIntercompany(ctx context.Context, id, status, decidedBy string) error
}

type store struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed ledger store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

func (s *store) CreateAccount(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO accounts (id, organization_id, code, name, type, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		a.ID, a.OrganizationID, a.Code, a.Name, a.Type, a.IsActive,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *store) GetAccount(ctx context.Context, organizationID, id string) (Account, error) {
	var a Account
	err := s.db.GetContext(ctx, &a,
		`SELECT * FROM accounts WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return a, err
}

func (s *store) ListAccounts(ctx context.Context, organizationID string) ([]Account, error) {
	var accounts []Account
	err := s.db.SelectContext(ctx, &accounts,
		`SELECT * FROM accounts WHERE organization_id = $1 ORDER BY code`, organizationID)
	return accounts, err
}

func (s *store) UpdateAccount(ctx context.Context, a Account) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET code = $3, name = $4, type = $5, is_active = $6, updated_at = NOW()
		 WHERE organization_id = $1 AND id = $2`,
		a.OrganizationID, a.ID, a.Code, a.Name, a.Type, a.IsActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *store) DeleteAccount(ctx context.Context, organizationID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// AccountLineCount counts journal lines referencing an account across all
// entry statuses.
func (s *store) AccountLineCount(ctx context.Context, organizationID, id string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM journal_lines l
		 JOIN journal_entries e ON e.id = l.entry_id
		 WHERE e.organization_id = $1 AND l.account_id = $2`, organizationID, id)
	return n, err
}

func (s *store) CreateEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = EntryDraft
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return JournalEntry{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO journal_entries (id, organization_id, period_id, entry_date, memo, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		e.ID, e.OrganizationID, e.PeriodID, e.EntryDate, e.Memo, e.Status, e.CreatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}

	if err := insertLines(ctx, tx, e.ID, e.Lines); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return JournalEntry{}, err
	}
	for i := range e.Lines {
		e.Lines[i].EntryID = e.ID
		e.Lines[i].LineNo = i + 1
	}
	return e, nil
}

func insertLines(ctx context.Context, tx *sqlx.Tx, entryID string, lines []JournalLine) error {
	for i, l := range lines {
		id := l.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO journal_lines (id, entry_id, line_no, account_id, debit, credit, description)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, entryID, i+1, l.AccountID, l.Debit, l.Credit, l.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *store) GetEntry(ctx context.Context, organizationID, id string) (JournalEntry, error) {
	var e JournalEntry
	err := s.db.GetContext(ctx, &e,
		`SELECT * FROM journal_entries WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return JournalEntry{}, ErrEntryNotFound
	}
	if err != nil {
		return JournalEntry{}, err
	}
	err = s.db.SelectContext(ctx, &e.Lines,
		`SELECT * FROM journal_lines WHERE entry_id = $1 ORDER BY line_no`, id)
	return e, err
}

func (s *store) ListEntries(ctx context.Context, organizationID, periodID string) ([]JournalEntry, error) {
	var entries []JournalEntry
	query := `SELECT * FROM journal_entries WHERE organization_id = $1`
	args := []any{organizationID}
	if periodID != "" {
		query += ` AND period_id = $2`
		args = append(args, periodID)
	}
	query += ` ORDER BY entry_date, created_at`
	err := s.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

// ReplaceEntry rewrites a draft entry's header and lines atomically.
func (s *store) ReplaceEntry(ctx context.Context, e JournalEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE journal_entries SET period_id = $3, entry_date = $4, memo = $5, updated_at = NOW()
		 WHERE organization_id = $1 AND id = $2 AND status = $6`,
		e.OrganizationID, e.ID, e.PeriodID, e.EntryDate, e.Memo, EntryDraft)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_lines WHERE entry_id = $1`, e.ID); err != nil {
		return err
	}
	if err := insertLines(ctx, tx, e.ID, e.Lines); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *store) SetEntryStatus(ctx context.Context, organizationID, id, status string) error {
	query := `UPDATE journal_entries SET status = $3, updated_at = NOW()
		 WHERE organization_id = $1 AND id = $2`
	if status == EntryPosted {
		query = `UPDATE journal_entries SET status = $3, posted_at = NOW(), updated_at = NOW()
		 WHERE organization_id = $1 AND id = $2`
	}
	res, err := s.db.ExecContext(ctx, query, organizationID, id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *store) DeleteEntry(ctx context.Context, organizationID, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_lines WHERE entry_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM journal_entries WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEntryNotFound
	}
	return tx.Commit()
}

func (s *store) CreateIntercompany(ctx context.Context, t IntercompanyTransaction) (IntercompanyTransaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = IntercompanyPending
	}
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO intercompany_transactions (id, source_org_id, target_org_id, amount, currency, memo, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		t.ID, t.SourceOrgID, t.TargetOrgID, t.Amount, t.Currency, t.Memo, t.Status, t.CreatedBy,
	).Scan(&t.CreatedAt)
	return t, err
}

func (s *store) GetIntercompany(ctx context.Context, id string) (IntercompanyTransaction, error) {
	var t IntercompanyTransaction
	err := s.db.GetContext(ctx, &t,
		`SELECT * FROM intercompany_transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return IntercompanyTransaction{}, ErrTxnNotFound
	}
	return t, err
}

func (s *store) ListIntercompany(ctx context.Context, organizationID string) ([]IntercompanyTransaction, error) {
	var txns []IntercompanyTransaction
	err := s.db.SelectContext(ctx, &txns,
		`SELECT * FROM intercompany_transactions
		 WHERE source_org_id = $1 OR target_org_id = $1 ORDER BY created_at DESC`, organizationID)
	return txns, err
}

func (s *store) DecideIntercompany(ctx context.Context, id, status, decidedBy string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE intercompany_transactions SET status = $2, decided_by = $3, decided_at = NOW()
		 WHERE id = $1 AND status = $4`,
		id, status, decidedBy, IntercompanyPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTxnAlreadyDecided
	}
	return nil
}
