package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/finchat/internal/domain"
)

const accountWord = `([\p{L}\p{N}][\p{L}\p{N}_-]*)`

// accountPhrases capture a candidate account name next to the word "conta".
// Order matters: the explicit connector forms win over the bare ones.
var accountPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])((?:da|na|pela|pra|para\s+a)\s+conta\s+(?:d[aeo]s?\s+)?` + accountWord + `)`),
	regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(conta\s+(?:d[aeo]s?\s+)?` + accountWord + `)`),
	regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + accountWord + `\s+conta)\s*$`),
}

// connectorWords never name an account on their own.
var connectorWords = map[string]bool{
	"a": true, "o": true, "as": true, "os": true,
	"da": true, "de": true, "do": true, "das": true, "dos": true,
	"na": true, "no": true, "em": true, "pela": true, "pelo": true,
	"pra": true, "para": true, "com": true, "minha": true, "meu": true,
}

type accountMatch struct {
	account domain.Account
	// phrase span in the original text; start == end when the account was
	// found by name scanning.
	start int
	end   int
}

// MatchAccount finds the account referenced by text, if any.
func MatchAccount(text string, accounts []domain.Account) (domain.Account, bool) {
	m, ok := findAccount(text, accounts)
	return m.account, ok
}

func findAccount(text string, accounts []domain.Account) (accountMatch, bool) {
	if len(accounts) == 0 {
		return accountMatch{}, false
	}
	if m, ok := findAccountByPhrase(text, accounts); ok {
		return m, true
	}
	return findAccountByName(text, accounts)
}

func findAccountByPhrase(text string, accounts []domain.Account) (accountMatch, bool) {
	for _, re := range accountPhrases {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		candidate := strings.ToLower(text[loc[4]:loc[5]])
		if connectorWords[candidate] {
			continue
		}
		for _, acc := range accounts {
			name := strings.ToLower(strings.TrimSpace(acc.Name))
			if name == "" {
				continue
			}
			if candidate == name || strings.Contains(candidate, name) || strings.Contains(name, candidate) {
				return accountMatch{account: acc, start: loc[2], end: loc[3]}, true
			}
		}
	}
	return accountMatch{}, false
}

// findAccountByName accepts the first account whose full name, or every
// word longer than two characters of it, occurs in the text.
func findAccountByName(text string, accounts []domain.Account) (accountMatch, bool) {
	lower := strings.ToLower(text)
	for _, acc := range accounts {
		name := strings.ToLower(strings.TrimSpace(acc.Name))
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) {
			return accountMatch{account: acc}, true
		}
		long := 0
		all := true
		for _, w := range strings.Fields(name) {
			if utf8.RuneCountInString(w) <= 2 {
				continue
			}
			long++
			if !strings.Contains(lower, w) {
				all = false
				break
			}
		}
		if long > 0 && all {
			return accountMatch{account: acc}, true
		}
	}
	return accountMatch{}, false
}
