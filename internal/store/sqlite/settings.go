package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/finchat/internal/domain"
)

// GetSettings returns the account's forecast settings, or nil when none
// were saved.
func (s *Store) GetSettings(ctx context.Context, accountID string) (*domain.ForecastSettings, error) {
	var fs domain.ForecastSettings
	err := s.db.QueryRowContext(ctx, `
	SELECT account_id, monthly_budget, alert_threshold, budget_type, auto_adjust, notifications_enabled, updated_at
	FROM forecast_settings WHERE account_id = ?`, accountID).
		Scan(&fs.AccountID, &fs.MonthlyBudget, &fs.AlertThreshold, &fs.BudgetType,
			&fs.AutoAdjust, &fs.NotificationsEnabled, &fs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetSettings: %w", err)
	}
	return &fs, nil
}

// UpsertSettings saves fs, replacing any previous settings of the account.
func (s *Store) UpsertSettings(ctx context.Context, fs *domain.ForecastSettings) error {
	if fs.BudgetType == "" {
		fs.BudgetType = domain.BudgetTypeFlexible
	}
	if fs.AlertThreshold == 0 {
		fs.AlertThreshold = domain.DefaultAlertThreshold
	}
	if fs.AlertThreshold < 1 || fs.AlertThreshold > 100 {
		return fmt.Errorf("UpsertSettings: alert threshold %d outside 1..100", fs.AlertThreshold)
	}
	if fs.BudgetType != domain.BudgetTypeFixed && fs.BudgetType != domain.BudgetTypeFlexible {
		return fmt.Errorf("UpsertSettings: unknown budget type %q", fs.BudgetType)
	}
	if fs.MonthlyBudget.Valid && fs.MonthlyBudget.Decimal.IsNegative() {
		return fmt.Errorf("UpsertSettings: monthly budget must not be negative")
	}
	fs.UpdatedAt = now()

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO forecast_settings(account_id, monthly_budget, alert_threshold, budget_type, auto_adjust, notifications_enabled, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id) DO UPDATE SET
	 monthly_budget=excluded.monthly_budget,
	 alert_threshold=excluded.alert_threshold,
	 budget_type=excluded.budget_type,
	 auto_adjust=excluded.auto_adjust,
	 notifications_enabled=excluded.notifications_enabled,
	 updated_at=excluded.updated_at`,
		fs.AccountID, fs.MonthlyBudget, fs.AlertThreshold, fs.BudgetType,
		fs.AutoAdjust, fs.NotificationsEnabled, fs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("UpsertSettings: %w", err)
	}
	return nil
}
