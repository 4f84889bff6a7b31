package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/google/uuid"
)

const transactionColumns = `id, account_id, category_id, type, amount, transaction_date, description, source, created_at`

// CreateTransaction inserts tx. The amount must be positive and the type
// known; the date is stored as a calendar date.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if !tx.Type.Valid() {
		return fmt.Errorf("CreateTransaction: invalid type %q", tx.Type)
	}
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("CreateTransaction: amount must be positive, got %s", tx.Amount)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Date.IsZero() {
		tx.Date = domain.DateOnly(time.Now())
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now()
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO transactions(`+transactionColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, nullString(tx.CategoryID), string(tx.Type), tx.Amount,
		tx.Date.Format(dateFormat), tx.Description, tx.Source, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

// GetTransaction loads one transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", notFound(err))
	}
	return tx, nil
}

// DeleteTransaction removes one transaction.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteTransaction: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteTransaction: %w", store.ErrNotFound)
	}
	return nil
}

// ListTransactions returns transactions of accountID with from <= date < to.
func (s *Store) ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error) {
	var (
		where = []string{"account_id = ?"}
		args  = []any{accountID}
	)
	if !from.IsZero() {
		where = append(where, "transaction_date >= ?")
		args = append(args, from.Format(dateFormat))
	}
	if !to.IsZero() {
		where = append(where, "transaction_date < ?")
		args = append(args, to.Format(dateFormat))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY transaction_date DESC, created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func scanTransaction(sc scanner) (*domain.Transaction, error) {
	var (
		tx       domain.Transaction
		category sql.NullString
		typ      string
		date     string
	)
	err := sc.Scan(&tx.ID, &tx.AccountID, &category, &typ, &tx.Amount, &date,
		&tx.Description, &tx.Source, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.CategoryID = category.String
	tx.Type = domain.TransactionType(typ)
	if tx.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	return &tx, nil
}
