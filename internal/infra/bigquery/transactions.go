package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/shopspring/decimal"
)

// TransactionRow is one row of the transactions mirror table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	AccountID     string `bigquery:"account_id"`     // REQUIRED

	AccountName  bigquery.NullString `bigquery:"account_name"`  // NULLABLE
	CategoryID   bigquery.NullString `bigquery:"category_id"`   // NULLABLE
	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE

	Type            string     `bigquery:"type"`             // REQUIRED income|expense
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC, always positive
	Currency string   `bigquery:"currency"` // REQUIRED

	Description string              `bigquery:"description"` // REQUIRED
	Source      bigquery.NullString `bigquery:"source"`      // NULLABLE

	CreatedTS  time.Time `bigquery:"created_ts"`  // REQUIRED
	MirroredTS time.Time `bigquery:"mirrored_ts"` // REQUIRED
}

// NewTransactionRow builds the mirror row for tx. categoryName may be empty.
func NewTransactionRow(tx domain.Transaction, account domain.Account, categoryName string, now time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   tx.ID,
		AccountID:       tx.AccountID,
		Type:            string(tx.Type),
		TransactionDate: civil.DateOf(tx.Date),
		Amount:          tx.Amount.Rat(),
		Currency:        account.Currency,
		Description:     tx.Description,
		CreatedTS:       tx.CreatedAt.UTC(),
		MirroredTS:      now.UTC(),
	}
	if account.Name != "" {
		row.AccountName = bigquery.NullString{StringVal: account.Name, Valid: true}
	}
	if tx.CategoryID != "" {
		row.CategoryID = bigquery.NullString{StringVal: tx.CategoryID, Valid: true}
	}
	if categoryName != "" {
		row.CategoryName = bigquery.NullString{StringVal: categoryName, Valid: true}
	}
	if tx.Source != "" {
		row.Source = bigquery.NullString{StringVal: tx.Source, Valid: true}
	}
	return row
}

// Transaction converts the row back into a domain transaction.
func (r *TransactionRow) Transaction() (domain.Transaction, error) {
	if r.Amount == nil {
		return domain.Transaction{}, fmt.Errorf("Transaction: row %s has no amount", r.TransactionID)
	}
	amount, err := decimal.NewFromString(r.Amount.FloatString(2))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Transaction: parsing amount: %w", err)
	}

	return domain.Transaction{
		ID:          r.TransactionID,
		AccountID:   r.AccountID,
		CategoryID:  r.CategoryID.StringVal,
		Type:        domain.TransactionType(r.Type),
		Amount:      amount,
		Date:        r.TransactionDate.In(time.UTC),
		Description: r.Description,
		Source:      r.Source.StringVal,
		CreatedAt:   r.CreatedTS,
	}, nil
}
