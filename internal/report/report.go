package report

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TrialBalanceRow is one account's posted totals within a period. Amounts are
// integer minor units.
type TrialBalanceRow struct {
	AccountID   string `json:"account_id" db:"account_id"`
	AccountCode string `json:"account_code" db:"account_code"`
	AccountName string `json:"account_name" db:"account_name"`
	AccountType string `json:"account_type" db:"account_type"`
	TotalDebit  int64  `json:"total_debit" db:"total_debit"`
	TotalCredit int64  `json:"total_credit" db:"total_credit"`
}

// TrialBalance is the posted totals for every active account in a period.
type TrialBalance struct {
	PeriodID    string            `json:"period_id"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  int64             `json:"total_debit"`
	TotalCredit int64             `json:"total_credit"`
}

// ActivityRow is one posted journal line touching an account.
type ActivityRow struct {
	EntryID     string `json:"entry_id" db:"entry_id"`
	EntryDate   string `json:"entry_date" db:"entry_date"`
	Memo        string `json:"memo" db:"memo"`
	Debit       int64  `json:"debit" db:"debit"`
	Credit      int64  `json:"credit" db:"credit"`
	Description string `json:"description" db:"description"`
}

// Store runs the reporting aggregation queries. Only posted entries count.
type Store interface {
	TrialBalance(ctx context.Context, organizationID, periodID string) ([]TrialBalanceRow, error)
	AccountActivity(ctx context.Context, organizationID, accountID string) ([]ActivityRow, error)
}

type store struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed report store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

func (s *store) TrialBalance(ctx context.Context, organizationID, periodID string) ([]TrialBalanceRow, error) {
	var rows []TrialBalanceRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id AS account_id, a.code AS account_code, a.name AS account_name, a.type AS account_type,
		       COALESCE(SUM(l.debit), 0) AS total_debit, COALESCE(SUM(l.credit), 0) AS total_credit
		FROM accounts a
		LEFT JOIN (
			SELECT l.account_id, l.debit, l.credit
			FROM journal_lines l
			JOIN journal_entries e ON e.id = l.entry_id
			WHERE e.status = 'posted' AND e.period_id = $2
		) l ON l.account_id = a.id
		WHERE a.organization_id = $1 AND a.is_active
		GROUP BY a.id, a.code, a.name, a.type
		ORDER BY a.code`,
		organizationID, periodID)
	return rows, err
}

func (s *store) AccountActivity(ctx context.Context, organizationID, accountID string) ([]ActivityRow, error) {
	var rows []ActivityRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT e.id AS entry_id, to_char(e.entry_date, 'YYYY-MM-DD') AS entry_date, e.memo,
		       l.debit, l.credit, l.description
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.organization_id = $1 AND l.account_id = $2 AND e.status = 'posted'
		ORDER BY e.entry_date, e.created_at, l.line_no`,
		organizationID, accountID)
	return rows, err
}

// Service assembles ledger reports.
type Service interface {
	TrialBalance(ctx context.Context, organizationID, periodID string) (TrialBalance, error)
	AccountActivity(ctx context.Context, organizationID, accountID string) ([]ActivityRow, error)
}

type service struct {
	store Store
}

// NewService creates a new report service.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) TrialBalance(ctx context.Context, organizationID, periodID string) (TrialBalance, error) {
	rows, err := s.store.TrialBalance(ctx, organizationID, periodID)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{PeriodID: periodID, Rows: rows}
	for _, r := range rows {
		tb.TotalDebit += r.TotalDebit
		tb.TotalCredit += r.TotalCredit
	}
	return tb, nil
}

func (s *service) AccountActivity(ctx context.Context, organizationID, accountID string) ([]ActivityRow, error) {
	return s.store.AccountActivity(ctx, organizationID, accountID)
}
