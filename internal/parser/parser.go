// Package parser turns free-text chat messages such as "gastei 50 no
// mercado" into candidate transactions. It is pure: the same text and
// context always produce the same result and nothing fails.
package parser

import (
	"math"
	"strings"
	"unicode"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/shopspring/decimal"
)

// Field names reported in ParsedTransaction.MissingFields.
const (
	FieldAmount   = "amount"
	FieldType     = "type"
	FieldCategory = "category"
	FieldAccount  = "account"
)

// Confidence weights.
const (
	weightAmount   = 0.4
	weightType     = 0.3
	weightCategory = 0.2
	weightAccount  = 0.1
)

// Context is the snapshot of known accounts and categories a message is
// parsed against.
type Context struct {
	Accounts   []domain.Account
	Categories []domain.Category
}

// ParsedTransaction is a candidate transaction extracted from a message.
// Empty strings and an invalid Amount mean "not resolved".
type ParsedTransaction struct {
	Type          domain.TransactionType `json:"type"`
	Amount        decimal.NullDecimal    `json:"amount"`
	Currency      string                 `json:"currency,omitempty"`
	Category      string                 `json:"category"`
	Account       string                 `json:"account"`
	AccountID     string                 `json:"account_id,omitempty"`
	Description   string                 `json:"description"`
	Confidence    float64                `json:"confidence"`
	MissingFields []string               `json:"missing_fields"`
}

// Complete reports whether no required field is missing.
func (p ParsedTransaction) Complete() bool {
	return len(p.MissingFields) == 0 && p.Amount.Valid && p.Type != ""
}

// IsCommand reports whether text is a bot command rather than a message.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(text, unicode.IsSpace), "/")
}

// Parse extracts a candidate transaction from text.
func Parse(text string, c Context) ParsedTransaction {
	if IsCommand(text) {
		return ParsedTransaction{MissingFields: []string{}}
	}

	var (
		out   ParsedTransaction
		spans []span
	)

	if m, v, ok := findAmount(text); ok {
		out.Amount = decimal.NewNullDecimal(v)
		out.Currency = currencyTag(m.token)
		spans = append(spans, span{m.start, m.end})
	}

	if typ, start, end, ok := findType(text); ok {
		out.Type = typ
		if strings.TrimSpace(text[:start]) == "" {
			spans = append(spans, span{start, end})
		}
		out.Category = DetectCategory(text)
	}

	accountName := ""
	if m, ok := findAccount(text, c.Accounts); ok {
		out.Account = m.account.Name
		out.AccountID = m.account.ID
		accountName = m.account.Name
		spans = append(spans, span{m.start, m.end})
	}

	out.Description = describe(text, spans, accountName, out.Category)
	out.Confidence, out.MissingFields = Score(out, len(c.Accounts))
	return out
}

// Score computes the confidence and missing-field list for p given how
// many accounts the user has.
func Score(p ParsedTransaction, accountCount int) (float64, []string) {
	confidence := 0.0
	missing := []string{}

	if p.Amount.Valid {
		confidence += weightAmount
	} else {
		missing = append(missing, FieldAmount)
	}

	if p.Type != "" {
		confidence += weightType
		if p.Category != "" {
			confidence += weightCategory
		} else {
			missing = append(missing, FieldCategory)
		}
	} else {
		missing = append(missing, FieldType)
	}

	if accountCount > 1 {
		if p.Account != "" {
			confidence += weightAccount
		} else {
			missing = append(missing, FieldAccount)
		}
	}

	return math.Round(confidence*100) / 100, missing
}

// DetectType returns the transaction type implied by text, or "".
func DetectType(text string) domain.TransactionType {
	typ, _, _, _ := findType(text)
	return typ
}

func findType(text string) (domain.TransactionType, int, int, bool) {
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if start, end, ok := kw.find(text); ok {
				return rule.typ, start, end, true
			}
		}
	}
	return "", 0, 0, false
}

// DetectCategory returns the canonical category label for the first
// synonym found in text, or "".
func DetectCategory(text string) string {
	for _, cm := range categoryMatchers {
		for _, kw := range cm.synonyms {
			if _, _, ok := kw.find(text); ok {
				return cm.canonical
			}
		}
	}
	return ""
}
