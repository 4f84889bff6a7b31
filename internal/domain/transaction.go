package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tells income from expense. Amounts are always positive;
// the direction lives here.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction sources.
const (
	SourceAPI      = "api"
	SourceChat     = "chat"
	SourceTelegram = "telegram"
	SourceCLI      = "cli"
)

// Transaction is a single income or expense entry recorded against an account.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id,omitempty"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"transaction_date"` // calendar date, time part is zero
	Description string          `json:"description"`
	Source      string          `json:"source,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DateOnly truncates t to a calendar date in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MonthKey formats the month of t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
