package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget types.
const (
	BudgetTypeFixed    = "fixed"
	BudgetTypeFlexible = "flexible"
)

// DefaultAlertThreshold is used when settings leave the threshold unset.
const DefaultAlertThreshold = 80

// ForecastSettings holds per-account budget preferences. A nil
// *ForecastSettings means no custom budget with auto adjustment on.
type ForecastSettings struct {
	AccountID            string              `json:"account_id"`
	MonthlyBudget        decimal.NullDecimal `json:"monthly_budget"`
	AlertThreshold       int                 `json:"alert_threshold"`
	BudgetType           string              `json:"budget_type"`
	AutoAdjust           bool                `json:"auto_adjust"`
	NotificationsEnabled bool                `json:"notifications_enabled"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// Threshold returns the alert threshold percentage, falling back to the default.
func (s *ForecastSettings) Threshold() int {
	if s == nil || s.AlertThreshold <= 0 || s.AlertThreshold > 100 {
		return DefaultAlertThreshold
	}
	return s.AlertThreshold
}

// RecurringBill is a monthly obligation that reduces the remaining budget
// until it is marked paid for the month.
type RecurringBill struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	DueDay        int             `json:"due_day"`
	LastPaidMonth string          `json:"last_paid_month,omitempty"`
}

// PaidIn reports whether the bill was paid for the month key (YYYY-MM).
func (b RecurringBill) PaidIn(month string) bool {
	return b.LastPaidMonth == month
}
