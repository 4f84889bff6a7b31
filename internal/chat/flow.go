package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/parser"
	"github.com/dvloznov/finchat/internal/session"
)

// snapshot is the cached view of accounts and categories.
type snapshot struct {
	accounts   []domain.Account
	categories []domain.Category
}

func (s snapshot) context() parser.Context {
	return parser.Context{Accounts: s.accounts, Categories: s.categories}
}

func (s snapshot) account(id string) (domain.Account, bool) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Account{}, false
}

// currency is the draft's currency tag, or the currency of its account when
// the message carried no currency word.
func (s snapshot) currency(p parser.ParsedTransaction) string {
	if p.Currency != "" {
		return p.Currency
	}
	if a, ok := s.account(p.AccountID); ok {
		return a.Currency
	}
	return ""
}

func (s snapshot) category(id string) (domain.Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

func (s *Service) snapshot(ctx context.Context) (snapshot, error) {
	if v, ok := s.cache.Get(snapshotKey); ok {
		if snap, ok := v.(snapshot); ok {
			return snap, nil
		}
	}

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("loading accounts: %w", err)
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("loading categories: %w", err)
	}

	snap := snapshot{accounts: accounts, categories: categories}
	s.cache.SetWithTTL(snapshotKey, snap, 1, s.snapshotTTL)
	return snap, nil
}

// answer interprets text as the value of the awaited field.
func answer(sess session.Session, text string, snap snapshot) (session.Session, bool) {
	p := sess.Draft
	switch sess.Awaiting {
	case parser.FieldAmount:
		v, currency, ok := parser.ExtractAmount(text)
		if !ok {
			return sess, false
		}
		p.Amount.Decimal, p.Amount.Valid = v, true
		if p.Currency == "" {
			p.Currency = currency
		}

	case parser.FieldType:
		t := parser.DetectType(text)
		if t == "" {
			return sess, false
		}
		sess.Draft = p
		return setType(sess, t), true

	case parser.FieldCategory:
		m := parser.ResolveCategory(text, p.Type, snap.categories)
		if !m.Confident() {
			return sess, false
		}
		p.Category = strings.ToLower(m.Category.Name)
		sess.CategoryID = m.Category.ID

	case parser.FieldAccount:
		a, ok := parser.MatchAccount(text, snap.accounts)
		if !ok {
			for _, candidate := range snap.accounts {
				if strings.EqualFold(strings.TrimSpace(text), candidate.Name) {
					a, ok = candidate, true
					break
				}
			}
		}
		if !ok {
			return sess, false
		}
		p.Account = a.Name
		p.AccountID = a.ID

	default:
		return sess, false
	}

	sess.Draft = p
	return sess, true
}

// setType records the type and, now that it is known, looks for a
// category in the original message.
func setType(sess session.Session, t domain.TransactionType) session.Session {
	if sess.Draft.Type != t {
		sess.Draft.Category = ""
		sess.CategoryID = ""
	}
	sess.Draft.Type = t
	if sess.Draft.Category == "" {
		sess.Draft.Category = parser.DetectCategory(sess.Text)
	}
	return sess
}

func question(field string, p parser.ParsedTransaction, snap snapshot) Reply {
	reply := Reply{Awaiting: field, Draft: &p}
	switch field {
	case parser.FieldAmount:
		reply.Text = "Qual o valor?"
	case parser.FieldType:
		reply.Text = "É uma receita ou uma despesa?"
		reply.Options = []Option{
			{Label: TypeLabel(domain.TransactionTypeIncome), Data: PrefixType + string(domain.TransactionTypeIncome)},
			{Label: TypeLabel(domain.TransactionTypeExpense), Data: PrefixType + string(domain.TransactionTypeExpense)},
		}
	case parser.FieldCategory:
		reply.Text = "Qual a categoria?"
		for _, c := range snap.categories {
			if c.Type != p.Type {
				continue
			}
			reply.Options = append(reply.Options, Option{Label: strings.TrimSpace(c.Icon + " " + c.Name), Data: PrefixCategory + c.ID})
		}
	case parser.FieldAccount:
		reply.Text = "Em qual conta?"
		for _, a := range snap.accounts {
			reply.Options = append(reply.Options, Option{Label: a.Name, Data: PrefixAccount + a.ID})
		}
	}
	reply.Options = append(reply.Options, Option{Label: "Cancelar", Data: ChoiceCancel})
	return reply
}

func confirmation(sess session.Session, snap snapshot) Reply {
	p := sess.Draft

	category := p.Category
	if c, ok := snap.category(sess.CategoryID); ok {
		category = c.Name
	} else if m := parser.ResolveCategory(p.Category, p.Type, snap.categories); m.Found() {
		category = m.Category.Name
	}

	var b strings.Builder
	b.WriteString("Confirma o lançamento?\n")
	fmt.Fprintf(&b, "%s: %s\n", TypeLabel(p.Type), FormatMoney(p.Amount.Decimal, snap.currency(p)))
	fmt.Fprintf(&b, "Categoria: %s\n", category)
	fmt.Fprintf(&b, "Conta: %s\n", p.Account)
	fmt.Fprintf(&b, "Descrição: %s", p.Description)
	if sess.Warning != "" {
		b.WriteString("\n\n" + sess.Warning)
	}

	return Reply{
		Text:    b.String(),
		Draft:   &p,
		Warning: sess.Warning,
		Options: []Option{
			{Label: "Confirmar", Data: ChoiceConfirm},
			{Label: "Cancelar", Data: ChoiceCancel},
		},
	}
}
