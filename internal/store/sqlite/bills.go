package sqlite

import (
	"context"
	"fmt"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateBill inserts b, assigning an ID when empty.
func (s *Store) CreateBill(ctx context.Context, b *domain.RecurringBill) error {
	if b.DueDay < 1 || b.DueDay > 31 {
		return fmt.Errorf("CreateBill: due day %d outside 1..31", b.DueDay)
	}
	if !b.Amount.IsPositive() {
		return fmt.Errorf("CreateBill: amount must be positive, got %s", b.Amount)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO recurring_bills(id, account_id, name, amount, due_day, last_paid_month)
	VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.AccountID, b.Name, b.Amount, b.DueDay, b.LastPaidMonth)
	if err != nil {
		return fmt.Errorf("CreateBill: %w", err)
	}
	return nil
}

// ListBills returns the account's bills ordered by due day.
func (s *Store) ListBills(ctx context.Context, accountID string) ([]domain.RecurringBill, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, account_id, name, amount, due_day, last_paid_month
	FROM recurring_bills WHERE account_id = ? ORDER BY due_day, name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ListBills: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringBill
	for rows.Next() {
		var b domain.RecurringBill
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Name, &b.Amount, &b.DueDay, &b.LastPaidMonth); err != nil {
			return nil, fmt.Errorf("ListBills: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkBillPaid records month (YYYY-MM) as the last paid month of bill id.
// A bill that does not belong to accountID is reported as not found.
func (s *Store) MarkBillPaid(ctx context.Context, accountID, id, month string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recurring_bills SET last_paid_month = ? WHERE id = ? AND account_id = ?`,
		month, id, accountID)
	if err != nil {
		return fmt.Errorf("MarkBillPaid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkBillPaid: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkBillPaid: %w", store.ErrNotFound)
	}
	return nil
}

// UnpaidTotal sums the bills of accountID not yet paid in month.
func (s *Store) UnpaidTotal(ctx context.Context, accountID, month string) (decimal.Decimal, error) {
	bills, err := s.ListBills(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("UnpaidTotal: %w", err)
	}
	total := decimal.Zero
	for _, b := range bills {
		if !b.PaidIn(month) {
			total = total.Add(b.Amount)
		}
	}
	return total, nil
}
