package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "finchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, Migrate(s.DB()))

	version, dirty, err := Version(s.DB())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &domain.Account{Name: "Nubank"}
	require.NoError(t, s.CreateAccount(ctx, a))
	require.NotEmpty(t, a.ID)
	assert.Equal(t, "BRL", a.Currency)

	require.NoError(t, s.CreateAccount(ctx, &domain.Account{Name: "Itaú", Currency: "BRL"}))
	require.Error(t, s.CreateAccount(ctx, &domain.Account{Name: "nubank"}), "names are unique ignoring case")

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nubank", got.Name)

	byName, err := s.FindAccountByName(ctx, "NUBANK")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	_, err = s.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Itaú", all[0].Name)
}

func TestSeedDefaultCategories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SeedDefaultCategories(ctx))
	first, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, s.SeedDefaultCategories(ctx))
	second, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var income, expense int
	for _, c := range first {
		switch c.Type {
		case domain.TransactionTypeIncome:
			income++
		case domain.TransactionTypeExpense:
			expense++
		}
	}
	assert.Positive(t, income)
	assert.Positive(t, expense)
	assert.Equal(t, domain.TransactionTypeExpense, first[0].Type)
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SeedDefaultCategories(ctx))
	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)

	a := &domain.Account{Name: "Nubank"}
	require.NoError(t, s.CreateAccount(ctx, a))

	tx := &domain.Transaction{
		AccountID:   a.ID,
		CategoryID:  cats[0].ID,
		Type:        domain.TransactionTypeExpense,
		Amount:      decimal.RequireFromString("1234.56"),
		Date:        day(2026, time.October, 3),
		Description: "Mercado",
		Source:      domain.SourceChat,
	}
	require.NoError(t, s.CreateTransaction(ctx, tx))
	require.NoError(t, s.CreateTransaction(ctx, &domain.Transaction{
		AccountID: a.ID,
		Type:      domain.TransactionTypeIncome,
		Amount:    decimal.NewFromInt(5000),
		Date:      day(2026, time.September, 30),
	}))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(tx.Amount), "amount %s", got.Amount)
	assert.Equal(t, tx.Date, got.Date)
	assert.Equal(t, cats[0].ID, got.CategoryID)
	assert.Equal(t, domain.SourceChat, got.Source)

	october, err := s.ListTransactions(ctx, a.ID, day(2026, time.October, 1), day(2026, time.November, 1))
	require.NoError(t, err)
	require.Len(t, october, 1)
	assert.Equal(t, tx.ID, october[0].ID)

	all, err := s.ListTransactions(ctx, a.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Empty(t, all[1].CategoryID)

	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, tx.ID), store.ErrNotFound)
	_, err = s.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateTransaction_Rejects(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := &domain.Account{Name: "Nubank"}
	require.NoError(t, s.CreateAccount(ctx, a))

	tests := []struct {
		name string
		tx   domain.Transaction
	}{
		{"zero amount", domain.Transaction{AccountID: a.ID, Type: domain.TransactionTypeExpense, Amount: decimal.Zero}},
		{"negative amount", domain.Transaction{AccountID: a.ID, Type: domain.TransactionTypeExpense, Amount: decimal.NewFromInt(-5)}},
		{"unknown type", domain.Transaction{AccountID: a.ID, Type: "transfer", Amount: decimal.NewFromInt(5)}},
		{"unknown account", domain.Transaction{AccountID: "nope", Type: domain.TransactionTypeExpense, Amount: decimal.NewFromInt(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := tt.tx
			assert.Error(t, s.CreateTransaction(ctx, &tx))
		})
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := &domain.Account{Name: "Nubank"}
	require.NoError(t, s.CreateAccount(ctx, a))

	got, err := s.GetSettings(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	fs := &domain.ForecastSettings{
		AccountID:     a.ID,
		MonthlyBudget: decimal.NewNullDecimal(decimal.NewFromInt(3000)),
		AutoAdjust:    true,
	}
	require.NoError(t, s.UpsertSettings(ctx, fs))

	got, err = s.GetSettings(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.MonthlyBudget.Valid)
	assert.True(t, got.MonthlyBudget.Decimal.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, domain.DefaultAlertThreshold, got.AlertThreshold)
	assert.Equal(t, domain.BudgetTypeFlexible, got.BudgetType)
	assert.True(t, got.AutoAdjust)
	assert.False(t, got.NotificationsEnabled)

	fs.MonthlyBudget = decimal.NullDecimal{}
	fs.AlertThreshold = 90
	require.NoError(t, s.UpsertSettings(ctx, fs))
	got, err = s.GetSettings(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.MonthlyBudget.Valid)
	assert.Equal(t, 90, got.AlertThreshold)

	fs.AlertThreshold = 150
	assert.Error(t, s.UpsertSettings(ctx, fs))
}

func TestBills(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := &domain.Account{Name: "Nubank"}
	require.NoError(t, s.CreateAccount(ctx, a))

	rent := &domain.RecurringBill{AccountID: a.ID, Name: "Aluguel", Amount: decimal.NewFromInt(1500), DueDay: 5}
	net := &domain.RecurringBill{AccountID: a.ID, Name: "Internet", Amount: decimal.RequireFromString("99.90"), DueDay: 10}
	require.NoError(t, s.CreateBill(ctx, rent))
	require.NoError(t, s.CreateBill(ctx, net))
	assert.Error(t, s.CreateBill(ctx, &domain.RecurringBill{AccountID: a.ID, Name: "x", Amount: decimal.NewFromInt(1), DueDay: 32}))

	total, err := s.UnpaidTotal(ctx, a.ID, "2026-10")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1599.90")), "total %s", total)

	other := &domain.Account{Name: "Itaú"}
	require.NoError(t, s.CreateAccount(ctx, other))
	assert.ErrorIs(t, s.MarkBillPaid(ctx, other.ID, rent.ID, "2026-10"), store.ErrNotFound)
	total, err = s.UnpaidTotal(ctx, a.ID, "2026-10")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1599.90")), "a foreign account leaves the bill unpaid")

	require.NoError(t, s.MarkBillPaid(ctx, a.ID, rent.ID, "2026-10"))
	total, err = s.UnpaidTotal(ctx, a.ID, "2026-10")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("99.90")))

	total, err = s.UnpaidTotal(ctx, a.ID, "2026-11")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1599.90")))

	assert.ErrorIs(t, s.MarkBillPaid(ctx, a.ID, "missing", "2026-10"), store.ErrNotFound)

	bills, err := s.ListBills(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, "Aluguel", bills[0].Name)
}
