package chat

import (
	"strings"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/parser"
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount in Brazilian notation, e.g. "R$ 1.234,56",
// or "1.234,56 kr" for krona.
func FormatMoney(amount decimal.Decimal, currency string) string {
	s := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	n := b.String() + "," + frac
	if amount.IsNegative() {
		n = "-" + n
	}

	if parser.IsKrona(currency) {
		return n + " kr"
	}
	return "R$ " + n
}

// TypeLabel is the Portuguese label of a transaction type.
func TypeLabel(t domain.TransactionType) string {
	switch t {
	case domain.TransactionTypeIncome:
		return "Receita"
	case domain.TransactionTypeExpense:
		return "Despesa"
	}
	return "?"
}
