package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency tags produced by the amount extractor.
const (
	CurrencyKrona   = "kr"
	DefaultCurrency = "BRL"
)

// number accepts "1.234,56" and "1.500" (thousands dots, optional decimal
// comma) before the plain "15", "15.5" and "15,50" forms.
const number = `(\d{1,3}(?:\.\d{3})+(?:,\d+)?|\d+(?:[.,]\d+)?)`

var thousandsOnly = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

// amountPattern is one (pattern, extractor) pair. Patterns are tried in
// order, specific before generic.
type amountPattern struct {
	name    string
	re      *regexp.Regexp
	extract func(text string, m []int) amountMatch
}

type amountMatch struct {
	raw   string
	token string
	start int
	end   int
}

var amountPatterns = []amountPattern{
	{
		name: "currency-prefix",
		re:   regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(r\$|brl|kr|sek)\s*` + number),
		extract: func(text string, m []int) amountMatch {
			return amountMatch{token: text[m[2]:m[3]], raw: text[m[4]:m[5]], start: m[2], end: m[5]}
		},
	},
	{
		name: "currency-suffix",
		re:   regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}.,])` + number + `\s*(kr|sek|reais|real|brl|r\$)(?:$|[^\p{L}\p{N}])`),
		extract: func(text string, m []int) amountMatch {
			return amountMatch{raw: text[m[2]:m[3]], token: text[m[4]:m[5]], start: m[2], end: m[5]}
		},
	},
	{
		name: "bare-number",
		re:   regexp.MustCompile(`(?:^|[^\p{L}\p{N}.,])` + number + `(?:$|[^\p{L}\p{N}])`),
		extract: func(text string, m []int) amountMatch {
			return amountMatch{raw: text[m[2]:m[3]], start: m[2], end: m[3]}
		},
	},
}

// ExtractAmount returns the first positive amount found in text together
// with its currency tag.
func ExtractAmount(text string) (decimal.Decimal, string, bool) {
	m, v, ok := findAmount(text)
	if !ok {
		return decimal.Zero, "", false
	}
	return v, currencyTag(m.token), true
}

func findAmount(text string) (amountMatch, decimal.Decimal, bool) {
	for _, p := range amountPatterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		m := p.extract(text, loc)
		v, err := decimal.NewFromString(normalizeNumber(m.raw))
		if err != nil || !v.IsPositive() {
			continue
		}
		return m, v, true
	}
	return amountMatch{}, decimal.Zero, false
}

// normalizeNumber turns a decimal comma into a dot, dropping thousands
// dots. Without a comma, dots count as thousands separators only when every
// group after the first has exactly three digits, so "1.500" is 1500 and
// "12.75" stays 12.75.
func normalizeNumber(raw string) string {
	if !strings.Contains(raw, ",") {
		if thousandsOnly.MatchString(raw) {
			return strings.ReplaceAll(raw, ".", "")
		}
		return raw
	}
	raw = strings.ReplaceAll(raw, ".", "")
	return strings.Replace(raw, ",", ".", 1)
}

// currencyTag maps a matched currency word to its tag. A bare number has no
// tag so the caller can fall back to the account's currency.
func currencyTag(token string) string {
	switch strings.ToLower(token) {
	case "":
		return ""
	case "kr", "sek":
		return CurrencyKrona
	default:
		return DefaultCurrency
	}
}

// IsKrona reports whether currency names the Swedish krona, either as the
// extractor's tag or as an account's ISO code.
func IsKrona(currency string) bool {
	switch strings.ToLower(strings.TrimSpace(currency)) {
	case "kr", "sek":
		return true
	}
	return false
}
