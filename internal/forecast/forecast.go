// Package forecast projects an account's monthly spending from its
// history and optional budget settings.
package forecast

import (
	"math"
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/shopspring/decimal"
)

// Status classifies the current month against the estimate.
type Status string

const (
	StatusNoBudget    Status = "no-budget"
	StatusOverBudget  Status = "over-budget"
	StatusWarning     Status = "warning"
	StatusUnderBudget Status = "under-budget"
	StatusOnTrack     Status = "on-track"
)

// Confidence grades how much the trailing history can be trusted.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

const (
	// TrailingMonths is the number of complete months averaged.
	TrailingMonths = 6

	// underBudgetRatio marks spending comfortably below the estimate.
	underBudgetRatio = 0.7
)

// weeksPerMonth is the average number of weeks in a month.
var weeksPerMonth = decimal.RequireFromString("4.33")

// Input is everything Calculate needs. Current and Trailing may contain
// transactions of other accounts; they are filtered by AccountID.
type Input struct {
	AccountID   string
	Current     []domain.Transaction
	Trailing    []domain.Transaction
	Settings    *domain.ForecastSettings
	UnpaidBills decimal.Decimal
	Now         time.Time
}

// Result is the projection for the current month.
type Result struct {
	AccountID             string          `json:"account_id"`
	MonthlyEstimate       decimal.Decimal `json:"monthly_estimate"`
	WeeklyEstimate        decimal.Decimal `json:"weekly_estimate"`
	CurrentWeekSpent      decimal.Decimal `json:"current_week_spent"`
	CurrentMonthSpent     decimal.Decimal `json:"current_month_spent"`
	RemainingThisMonth    decimal.Decimal `json:"remaining_this_month"`
	DaysRemaining         int             `json:"days_remaining"`
	ProjectedMonthlyTotal decimal.Decimal `json:"projected_monthly_total"`
	Status                Status          `json:"status"`
	Confidence            Confidence      `json:"confidence"`
	IsUsingCustomBudget   bool            `json:"is_using_custom_budget"`
	TrailingAverage       decimal.Decimal `json:"trailing_average"`
	BudgetUsedPercent     float64         `json:"budget_used_percent"`
	AlertThreshold        int             `json:"alert_threshold"`
	UnpaidBills           decimal.Decimal `json:"unpaid_bills"`
}

// Alerting reports whether the status deserves a notification.
func (r Result) Alerting() bool {
	return r.Status == StatusWarning || r.Status == StatusOverBudget
}

// Calculate projects the current month for in.AccountID.
func Calculate(in Input) Result {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	loc := now.Location()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	nextMonth := monthStart.AddDate(0, 1, 0)
	daysInMonth := nextMonth.AddDate(0, 0, -1).Day()
	day := now.Day()
	weekStart := WeekStart(now)

	current := filterExpenses(in.Current, in.AccountID)
	trailing := filterExpenses(in.Trailing, in.AccountID)

	monthSpent := decimal.Zero
	weekSpent := decimal.Zero
	for _, tx := range current {
		d := localDate(tx.Date, loc)
		if !d.Before(monthStart) && d.Before(nextMonth) {
			monthSpent = monthSpent.Add(tx.Amount)
		}
		if !d.Before(weekStart) {
			weekSpent = weekSpent.Add(tx.Amount)
		}
	}

	buckets := monthlyBuckets(trailing, monthStart)
	average := decimal.Zero
	for _, b := range buckets {
		average = average.Add(b)
	}
	average = average.Div(decimal.NewFromInt(TrailingMonths))

	res := Result{
		AccountID:         in.AccountID,
		CurrentMonthSpent: monthSpent,
		CurrentWeekSpent:  weekSpent,
		TrailingAverage:   average,
		DaysRemaining:     daysInMonth - day,
		AlertThreshold:    in.Settings.Threshold(),
		UnpaidBills:       in.UnpaidBills,
		Confidence:        confidence(buckets),
	}

	switch {
	case in.Settings != nil && in.Settings.MonthlyBudget.Valid && !in.Settings.MonthlyBudget.Decimal.IsZero():
		res.MonthlyEstimate = in.Settings.MonthlyBudget.Decimal
		res.IsUsingCustomBudget = true
	case (in.Settings == nil || in.Settings.AutoAdjust) && average.IsPositive():
		res.MonthlyEstimate = average
	default:
		res.MonthlyEstimate = decimal.Zero
	}

	res.WeeklyEstimate = decimal.Zero
	if !res.MonthlyEstimate.IsZero() {
		res.WeeklyEstimate = res.MonthlyEstimate.Div(weeksPerMonth)
	}

	res.ProjectedMonthlyTotal = monthSpent.
		Mul(decimal.NewFromInt(int64(daysInMonth))).
		Div(decimal.NewFromInt(int64(max(1, day))))

	res.RemainingThisMonth = decimal.Max(decimal.Zero, res.MonthlyEstimate.Sub(monthSpent).Sub(in.UnpaidBills))

	if res.MonthlyEstimate.IsPositive() {
		res.BudgetUsedPercent = monthSpent.Div(res.MonthlyEstimate).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}

	res.Status = classify(monthSpent, res.MonthlyEstimate, res.AlertThreshold)
	return res
}

func classify(spent, estimate decimal.Decimal, threshold int) Status {
	switch {
	case estimate.IsZero():
		return StatusNoBudget
	case spent.GreaterThan(estimate):
		return StatusOverBudget
	case spent.GreaterThan(estimate.Mul(decimal.NewFromInt(int64(threshold))).Div(decimal.NewFromInt(100))):
		return StatusWarning
	case spent.LessThan(estimate.Mul(decimal.NewFromFloat(underBudgetRatio))):
		return StatusUnderBudget
	default:
		return StatusOnTrack
	}
}

// monthlyBuckets sums expenses into the TrailingMonths complete calendar
// months before monthStart, oldest first. Empty months stay zero.
func monthlyBuckets(txs []domain.Transaction, monthStart time.Time) []decimal.Decimal {
	buckets := make([]decimal.Decimal, TrailingMonths)
	for i := range buckets {
		buckets[i] = decimal.Zero
	}
	windowStart := monthStart.AddDate(0, -TrailingMonths, 0)
	for _, tx := range txs {
		d := localDate(tx.Date, monthStart.Location())
		if d.Before(windowStart) || !d.Before(monthStart) {
			continue
		}
		idx := (d.Year()-windowStart.Year())*12 + int(d.Month()-windowStart.Month())
		if idx >= 0 && idx < TrailingMonths {
			buckets[idx] = buckets[idx].Add(tx.Amount)
		}
	}
	return buckets
}

// confidence rewards both the number of months with spending and how
// steady those months were.
func confidence(buckets []decimal.Decimal) Confidence {
	var values []float64
	for _, b := range buckets {
		if !b.IsZero() {
			values = append(values, b.InexactFloat64())
		}
	}

	switch n := len(values); {
	case n < 2:
		return ConfidenceLow
	case n <= 3:
		return ConfidenceMedium
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return ConfidenceLow
	}

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	cv := math.Sqrt(variance) / mean

	switch {
	case cv < 0.5:
		return ConfidenceHigh
	case cv < 1.0:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func filterExpenses(txs []domain.Transaction, accountID string) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.AccountID == accountID && tx.Type == domain.TransactionTypeExpense {
			out = append(out, tx)
		}
	}
	return out
}

// localDate reads the calendar date of t and places it at midnight in loc.
func localDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// WeekStart is the Sunday that opens the week containing now.
func WeekStart(now time.Time) time.Time {
	return domain.DateOnly(now).AddDate(0, 0, -int(now.Weekday()))
}
