package sqlite

import (
	"context"
	"fmt"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/parser"
	"github.com/google/uuid"
)

// CreateAccount inserts a. Empty ID and currency are filled in.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Currency == "" {
		a.Currency = parser.DefaultCurrency
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO accounts(id, name, currency, created_at)
	VALUES (?, ?, ?, ?)`, a.ID, a.Name, a.Currency, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

// GetAccount loads one account by ID.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, currency, created_at FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", notFound(err))
	}
	return a, nil
}

// FindAccountByName loads one account by case-insensitive name.
func (s *Store) FindAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, currency, created_at FROM accounts WHERE name = ? COLLATE NOCASE`, name)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("FindAccountByName: %w", notFound(err))
	}
	return a, nil
}

// ListAccounts returns every account ordered by name.
func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, currency, created_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: scan: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(sc scanner) (*domain.Account, error) {
	var a domain.Account
	if err := sc.Scan(&a.ID, &a.Name, &a.Currency, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
