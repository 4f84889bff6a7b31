package parser

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FallbackDescription is used when nothing meaningful is left of the text.
const FallbackDescription = "Transação"

type span struct{ start, end int }

// describe strips everything the parser already consumed from text and
// returns what is left, or a fallback label.
func describe(text string, spans []span, accountName, category string) string {
	s := cutSpans(text, spans)

	if accountName != "" {
		for _, w := range strings.Fields(accountName) {
			s = keyword{word: w, re: wordPattern(w)}.removeAll(s)
		}
	}
	if category != "" {
		for _, cm := range categoryMatchers {
			if cm.canonical != category {
				continue
			}
			for _, kw := range cm.synonyms {
				s = kw.removeAll(s)
			}
		}
	}

	s = tidy(s)
	if utf8.RuneCountInString(s) <= 1 {
		if category != "" {
			return capitalize(category)
		}
		return FallbackDescription
	}
	return s
}

// cutSpans removes the given byte ranges from text, skipping overlaps.
func cutSpans(text string, spans []span) string {
	valid := make([]span, 0, len(spans))
	for _, sp := range spans {
		if sp.end > sp.start && sp.start >= 0 && sp.end <= len(text) {
			valid = append(valid, sp)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].start < valid[j].start })

	var b strings.Builder
	pos := 0
	for _, sp := range valid {
		if sp.start < pos {
			continue
		}
		b.WriteString(text[pos:sp.start])
		b.WriteByte(' ')
		pos = sp.end
	}
	b.WriteString(text[pos:])
	return b.String()
}

// tidy collapses whitespace, trims punctuation and dangling connectors.
func tidy(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && connectorWords[strings.ToLower(trimPunct(words[0]))] {
		words = words[1:]
	}
	for len(words) > 0 && connectorWords[strings.ToLower(trimPunct(words[len(words)-1]))] {
		words = words[:len(words)-1]
	}
	return trimPunct(strings.Join(words, " "))
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
