package parser

import (
	"strings"
	"unicode"

	"github.com/dvloznov/finchat/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchSource tells how a category was resolved.
type MatchSource string

const (
	MatchNone     MatchSource = ""
	MatchSynonym  MatchSource = "synonym"
	MatchName     MatchSource = "name"
	MatchFallback MatchSource = "fallback" // first category of the type; weak
)

// CategoryMatch is the outcome of ResolveCategory.
type CategoryMatch struct {
	Category domain.Category
	Source   MatchSource
}

// Found reports whether any category was picked.
func (m CategoryMatch) Found() bool {
	return m.Source != MatchNone
}

// Confident reports whether the match came from the label itself rather
// than the default-of-type fallback.
func (m CategoryMatch) Confident() bool {
	return m.Source == MatchSynonym || m.Source == MatchName
}

// ResolveCategoryID maps a label to a category id of the given type.
func ResolveCategoryID(label string, typ domain.TransactionType, categories []domain.Category) (string, bool) {
	m := ResolveCategory(label, typ, categories)
	return m.Category.ID, m.Found()
}

// ResolveCategory maps a canonical label (or a raw guess) to one of the
// user's categories. It tries the synonym table, then a name containing
// the label, then falls back to the first category of the type.
func ResolveCategory(label string, typ domain.TransactionType, categories []domain.Category) CategoryMatch {
	folded := fold(label)

	if folded != "" {
		for _, row := range categoryTable {
			key := fold(row.Canonical)
			for _, syn := range row.Synonyms {
				if !strings.Contains(folded, fold(syn)) {
					continue
				}
				for _, c := range categories {
					if c.Type == typ && strings.Contains(fold(c.Name), key) {
						return CategoryMatch{Category: c, Source: MatchSynonym}
					}
				}
			}
		}

		for _, c := range categories {
			if c.Type == typ && strings.Contains(fold(c.Name), folded) {
				return CategoryMatch{Category: c, Source: MatchName}
			}
		}
	}

	for _, c := range categories {
		if c.Type == typ {
			return CategoryMatch{Category: c, Source: MatchFallback}
		}
	}
	return CategoryMatch{}
}

// fold lowercases s and strips diacritics so "Alimentação" matches
// "alimentacao". Chained transformers keep state, so each call builds its own.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
