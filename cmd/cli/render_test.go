package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/forecast"
	"github.com/dvloznov/finchat/internal/parser"
)

func TestRenderParsed(t *testing.T) {
	p := parser.ParsedTransaction{
		Type:          domain.TransactionTypeExpense,
		Amount:        decimal.NewNullDecimal(decimal.RequireFromString("42.5")),
		Currency:      "BRL",
		Category:      "mercado",
		Description:   "Mercado",
		Confidence:    0.9,
		MissingFields: []string{parser.FieldAccount},
	}

	out := renderParsed(p)
	assert.Contains(t, out, "Parsed message")
	assert.Contains(t, out, "expense")
	assert.Contains(t, out, "mercado")
	assert.Contains(t, out, "90%")
	assert.Contains(t, out, "account")
}

func TestRenderForecast_NoBudget(t *testing.T) {
	account := domain.Account{Name: "Nubank", Currency: "BRL"}
	out := renderForecast(account, forecast.Result{Status: forecast.StatusNoBudget})

	assert.Contains(t, out, "Forecast: Nubank")
	assert.Contains(t, out, "no-budget")
	assert.NotContains(t, out, "Budget ")
}

func TestRenderForecast_WithBudget(t *testing.T) {
	account := domain.Account{Name: "Nubank", Currency: "BRL"}
	out := renderForecast(account, forecast.Result{
		Status:              forecast.StatusWarning,
		MonthlyEstimate:     decimal.NewFromInt(1000),
		RemainingThisMonth:  decimal.NewFromInt(150),
		DaysRemaining:       10,
		IsUsingCustomBudget: true,
		BudgetUsedPercent:   85,
		Confidence:          forecast.ConfidenceHigh,
	})

	assert.Contains(t, out, "over 10 days")
	assert.Contains(t, out, "85.0%")
	assert.Contains(t, out, "warning")
	assert.NotContains(t, out, "trailing average")
}

func TestRenderAccounts(t *testing.T) {
	assert.Contains(t, renderAccounts(nil), "No accounts yet")

	out := renderAccounts([]domain.Account{{ID: "a1", Name: "Nubank", Currency: "BRL"}})
	assert.Contains(t, out, "Accounts (1)")
	assert.Contains(t, out, "Nubank")
	assert.Contains(t, out, "a1")
}
