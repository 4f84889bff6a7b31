package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dvloznov/finchat/internal/chat"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/forecast"
	"github.com/dvloznov/finchat/internal/parser"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086")).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true)
)

func field(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(label))
	sb.WriteString(value)
	sb.WriteString("\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderParsed(p parser.ParsedTransaction) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Parsed message"))
	sb.WriteString("\n")

	field(&sb, "Type", orDash(string(p.Type)))
	amount := "-"
	if p.Amount.Valid {
		amount = chat.FormatMoney(p.Amount.Decimal, p.Currency)
	}
	field(&sb, "Amount", amount)
	field(&sb, "Category", orDash(p.Category))
	field(&sb, "Account", orDash(p.Account))
	field(&sb, "Description", orDash(p.Description))
	field(&sb, "Confidence", fmt.Sprintf("%.0f%%", p.Confidence*100))

	if len(p.MissingFields) > 0 {
		field(&sb, "Missing", warnStyle.Render(strings.Join(p.MissingFields, ", ")))
	} else {
		field(&sb, "Missing", okStyle.Render("none"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func statusStyle(s forecast.Status) lipgloss.Style {
	switch s {
	case forecast.StatusOverBudget:
		return errStyle
	case forecast.StatusWarning:
		return warnStyle
	case forecast.StatusNoBudget:
		return labelStyle.UnsetWidth()
	}
	return okStyle
}

func renderForecast(account domain.Account, res forecast.Result) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Forecast: " + account.Name))
	sb.WriteString("\n")

	field(&sb, "Month spent", chat.FormatMoney(res.CurrentMonthSpent, account.Currency))
	field(&sb, "Week spent", chat.FormatMoney(res.CurrentWeekSpent, account.Currency))
	if res.Status != forecast.StatusNoBudget {
		budget := chat.FormatMoney(res.MonthlyEstimate, account.Currency)
		if !res.IsUsingCustomBudget {
			budget += " (trailing average)"
		}
		field(&sb, "Budget", budget)
		field(&sb, "Used", fmt.Sprintf("%.1f%%", res.BudgetUsedPercent))
		field(&sb, "Remaining", fmt.Sprintf("%s over %d days", chat.FormatMoney(res.RemainingThisMonth, account.Currency), res.DaysRemaining))
		if res.UnpaidBills.IsPositive() {
			field(&sb, "Unpaid bills", chat.FormatMoney(res.UnpaidBills, account.Currency))
		}
		field(&sb, "Projected", chat.FormatMoney(res.ProjectedMonthlyTotal, account.Currency))
		field(&sb, "Confidence", string(res.Confidence))
	}
	field(&sb, "Status", statusStyle(res.Status).Render(string(res.Status)))
	return strings.TrimRight(sb.String(), "\n")
}

func renderAccounts(accounts []domain.Account) string {
	if len(accounts) == 0 {
		return warnStyle.Render("No accounts yet. Create one with: cli accounts -add <name>")
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Accounts (%d)", len(accounts))))
	for _, a := range accounts {
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render(a.Currency))
		sb.WriteString(a.Name)
		sb.WriteString("  ")
		sb.WriteString(labelStyle.UnsetWidth().Render(a.ID))
	}
	return sb.String()
}
