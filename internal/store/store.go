// Package store defines the persistence contracts used by the chat, API
// and bot layers.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// AccountRepository manages accounts.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	FindAccountByName(ctx context.Context, name string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// CategoryRepository manages categories.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpsertCategory(ctx context.Context, c domain.Category) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SeedDefaultCategories(ctx context.Context) error
}

// TransactionRepository manages transactions.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	// ListTransactions returns the account's transactions with from <= date < to,
	// newest first. A zero bound is open.
	ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error)
}

// SettingsRepository manages forecast settings. GetSettings returns nil
// without error when the account has no settings.
type SettingsRepository interface {
	GetSettings(ctx context.Context, accountID string) (*domain.ForecastSettings, error)
	UpsertSettings(ctx context.Context, s *domain.ForecastSettings) error
}

// BillRepository manages recurring bills.
type BillRepository interface {
	CreateBill(ctx context.Context, b *domain.RecurringBill) error
	ListBills(ctx context.Context, accountID string) ([]domain.RecurringBill, error)
	MarkBillPaid(ctx context.Context, accountID, id, month string) error
	UnpaidTotal(ctx context.Context, accountID, month string) (decimal.Decimal, error)
}

// Store groups every repository.
type Store interface {
	AccountRepository
	CategoryRepository
	TransactionRepository
	SettingsRepository
	BillRepository
}
