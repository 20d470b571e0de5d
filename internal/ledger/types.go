package ledger

import (
	"errors"
	"time"
)

// Account types follow the standard five-element chart of accounts.
const (
	AccountAsset     = "asset"
	AccountLiability = "liability"
	AccountEquity    = "equity"
	AccountRevenue   = "revenue"
	AccountExpense   = "expense"
)

// Account is one entry in an organization's chart of accounts.
type Account struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Code           string    `json:"code" db:"code"`
	Name           string    `json:"name" db:"name"`
	Type           string    `json:"type" db:"type"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Journal entry statuses. Draft entries are editable; posted entries are part
// of the books and can only be voided; void entries are inert.
const (
	EntryDraft  = "draft"
	EntryPosted = "posted"
	EntryVoid   = "void"
)

// JournalEntry is a double-entry record. Amounts are integer minor units in
// the organization's base currency.
type JournalEntry struct {
	ID             string        `json:"id" db:"id"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	PeriodID       string        `json:"period_id" db:"period_id"`
	EntryDate      time.Time     `json:"entry_date" db:"entry_date"`
	Memo           string        `json:"memo" db:"memo"`
	Status         string        `json:"status" db:"status"`
	CreatedBy      string        `json:"created_by" db:"created_by"`
	PostedAt       *time.Time    `json:"posted_at,omitempty" db:"posted_at"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
	Lines          []JournalLine `json:"lines" db:"-"`
}

// JournalLine is one debit or credit within an entry.
type JournalLine struct {
	ID          string `json:"id" db:"id"`
	EntryID     string `json:"entry_id" db:"entry_id"`
	LineNo      int    `json:"line_no" db:"line_no"`
	AccountID   string `json:"account_id" db:"account_id"`
	Debit       int64  `json:"debit" db:"debit"`
	Credit      int64  `json:"credit" db:"credit"`
	Description string `json:"description" db:"description"`
}

// Intercompany transaction statuses.
const (
	IntercompanyPending  = "pending"
	IntercompanyApproved = "approved"
	IntercompanyRejected = "rejected"
)

// IntercompanyTransaction records an amount owed between two organizations.
// It is created by the source organization and approved or rejected by the
// target organization.
type IntercompanyTransaction struct {
	ID           string     `json:"id" db:"id"`
	SourceOrgID  string     `json:"source_org_id" db:"source_org_id"`
	TargetOrgID  string     `json:"target_org_id" db:"target_org_id"`
	Amount       int64      `json:"amount" db:"amount"`
	Currency     string     `json:"currency" db:"currency"`
	Memo         string     `json:"memo" db:"memo"`
	Status       string     `json:"status" db:"status"`
	CreatedBy    string     `json:"created_by" db:"created_by"`
	DecidedBy    *string    `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt    *time.Time `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Validation and state errors surfaced to the HTTP layer.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountInUse      = errors.New("account has journal activity and cannot be deleted")
	ErrEntryNotFound     = errors.New("journal entry not found")
	ErrTxnNotFound       = errors.New("intercompany transaction not found")
	ErrUnbalancedEntry   = errors.New("journal entry debits and credits must balance")
	ErrEmptyEntry        = errors.New("journal entry requires at least two lines")
	ErrEntryNotDraft     = errors.New("only draft entries can be modified or posted")
	ErrEntryNotPosted    = errors.New("only posted entries can be voided")
	ErrPeriodNotOpen     = errors.New("fiscal period is not open for posting")
	ErrTxnAlreadyDecided = errors.New("intercompany transaction already decided")
)

// validateLines enforces double-entry shape: at least two lines, each line a
// pure debit or pure credit, and totals in balance.
func validateLines(lines []JournalLine) error {
	if len(lines) < 2 {
		return ErrEmptyEntry
	}
	var debits, credits int64
	for _, l := range lines {
		if l.Debit < 0 || l.Credit < 0 {
			return ErrUnbalancedEntry
		}
		if (l.Debit == 0) == (l.Credit == 0) {
			return ErrUnbalancedEntry
		}
		debits += l.Debit
		credits += l.Credit
	}
	if debits != credits || debits == 0 {
		return ErrUnbalancedEntry
	}
	return nil
}
