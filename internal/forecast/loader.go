package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/shopspring/decimal"
)

// Source is the read side of the store that a forecast needs.
type Source interface {
	GetSettings(ctx context.Context, accountID string) (*domain.ForecastSettings, error)
	ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error)
	UnpaidTotal(ctx context.Context, accountID, month string) (decimal.Decimal, error)
}

// ForAccount loads the current month, the trailing window, settings and
// unpaid bills of accountID and runs Calculate. The current window reaches
// back to the start of the week when the week began in the previous month.
func ForAccount(ctx context.Context, src Source, accountID string, now time.Time) (Result, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)
	currentFrom := monthStart
	if ws := WeekStart(now); ws.Before(currentFrom) {
		currentFrom = ws
	}

	settings, err := src.GetSettings(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("ForAccount: settings: %w", err)
	}
	current, err := src.ListTransactions(ctx, accountID, currentFrom, nextMonth)
	if err != nil {
		return Result{}, fmt.Errorf("ForAccount: current month: %w", err)
	}
	trailing, err := src.ListTransactions(ctx, accountID, monthStart.AddDate(0, -TrailingMonths, 0), monthStart)
	if err != nil {
		return Result{}, fmt.Errorf("ForAccount: trailing months: %w", err)
	}
	unpaid, err := src.UnpaidTotal(ctx, accountID, domain.MonthKey(now))
	if err != nil {
		return Result{}, fmt.Errorf("ForAccount: unpaid bills: %w", err)
	}

	return Calculate(Input{
		AccountID:   accountID,
		Current:     current,
		Trailing:    trailing,
		Settings:    settings,
		UnpaidBills: unpaid,
		Now:         now,
	}), nil
}
