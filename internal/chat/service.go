// Package chat drives the conversational flow shared by the web chat and
// the Telegram bot: parse a message, ask for what is missing, confirm,
// persist and report the budget impact.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/dgraph-io/ristretto"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/forecast"
	"github.com/dvloznov/finchat/internal/jobs"
	"github.com/dvloznov/finchat/internal/llm"
	"github.com/dvloznov/finchat/internal/logger"
	"github.com/dvloznov/finchat/internal/parser"
	"github.com/dvloznov/finchat/internal/session"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Choice data understood by HandleChoice.
const (
	ChoiceConfirm  = "confirm"
	ChoiceCancel   = "cancel"
	PrefixType     = "type:"
	PrefixCategory = "cat:"
	PrefixAccount  = "acc:"
)

const (
	snapshotKey          = "snapshot"
	defaultSnapshotTTL   = time.Minute
	duplicateMaxDistance = 0.4
)

// ErrUnknownChoice is returned for callback data HandleChoice cannot route.
var ErrUnknownChoice = errors.New("unknown choice")

const (
	msgEmpty         = "Me conte um gasto ou receita, por exemplo: \"gastei 50 no mercado\"."
	msgCommand       = "Comandos são tratados pelo bot. Envie um gasto ou receita em texto livre."
	msgNoAccounts    = "Nenhuma conta cadastrada. Crie uma conta antes de registrar transações."
	msgNotUnderstood = "Não entendi. Tente algo como \"gastei 50 no mercado\" ou \"recebi 3000 de salário\"."
	msgRetry         = "Não entendi. "
	msgExpired       = "Essa conversa expirou. Envie a transação de novo."
	msgCancelled     = "Tudo bem, descartei essa transação."
)

// Option is a selectable answer, rendered as a button by the bot.
type Option struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Reply is what the user sees after a turn.
type Reply struct {
	Text        string                    `json:"text"`
	Options     []Option                  `json:"options,omitempty"`
	Awaiting    string                    `json:"awaiting,omitempty"`
	Draft       *parser.ParsedTransaction `json:"draft,omitempty"`
	Warning     string                    `json:"warning,omitempty"`
	Transaction *domain.Transaction       `json:"transaction,omitempty"`
	Forecast    *forecast.Result          `json:"forecast,omitempty"`
	Alert       string                    `json:"alert,omitempty"`
}

// Config wires optional collaborators into a Service.
type Config struct {
	// Sessions defaults to a store with session.DefaultTTL.
	Sessions *session.Store
	// Assistant, when set, fills fields the regex parser missed.
	Assistant llm.Assistant
	// Publisher receives mirror and Notion jobs after each commit.
	Publisher        jobs.Publisher
	MirrorToBigQuery bool
	SyncNotion       bool

	SnapshotTTL time.Duration

	// OnCommit runs after a transaction is saved.
	OnCommit func(tx domain.Transaction)

	Logger zerolog.Logger
	Now    func() time.Time
}

// Service is the chat flow. It is safe for concurrent use; turns of the
// same conversation are expected to arrive one at a time.
type Service struct {
	store     store.Store
	sessions  *session.Store
	assistant llm.Assistant
	publisher jobs.Publisher
	mirror    bool
	notion    bool
	onCommit  func(tx domain.Transaction)

	cache       *ristretto.Cache
	snapshotTTL time.Duration

	log zerolog.Logger
	now func() time.Time
}

// NewService creates a chat service over st.
func NewService(st store.Store, cfg Config) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("NewService: snapshot cache: %w", err)
	}

	s := &Service{
		store:       st,
		sessions:    cfg.Sessions,
		assistant:   cfg.Assistant,
		publisher:   cfg.Publisher,
		mirror:      cfg.MirrorToBigQuery,
		notion:      cfg.SyncNotion,
		onCommit:    cfg.OnCommit,
		cache:       cache,
		snapshotTTL: cfg.SnapshotTTL,
		log:         cfg.Logger,
		now:         cfg.Now,
	}
	if s.sessions == nil {
		s.sessions = session.NewStore(session.DefaultTTL)
	}
	if s.snapshotTTL <= 0 {
		s.snapshotTTL = defaultSnapshotTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Sessions exposes the session store, e.g. to run its sweeper.
func (s *Service) Sessions() *session.Store {
	return s.sessions
}

// Close releases the snapshot cache.
func (s *Service) Close() {
	s.cache.Close()
}

// InvalidateSnapshot drops the cached accounts and categories so the next
// turn sees fresh data.
func (s *Service) InvalidateSnapshot() {
	s.cache.Del(snapshotKey)
}

// Cancel forgets any pending draft of the conversation.
func (s *Service) Cancel(conversationID string) Reply {
	s.sessions.Delete(conversationID)
	return Reply{Text: msgCancelled}
}

// HandleMessage processes one free-text message of a conversation.
func (s *Service) HandleMessage(ctx context.Context, conversationID, text string) (Reply, error) {
	log := logger.ForConversation(s.log, conversationID)

	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Text: msgEmpty}, nil
	}
	if parser.IsCommand(text) {
		return Reply{Text: msgCommand}, nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("HandleMessage: %w", err)
	}
	if len(snap.accounts) == 0 {
		return Reply{Text: msgNoAccounts}, nil
	}

	if sess, ok := s.sessions.Active(conversationID); ok && sess.Awaiting != "" {
		if next, ok := answer(sess, text, snap); ok {
			return s.advance(ctx, next, snap, "")
		}
		if fresh := parser.Parse(text, snap.context()); !fresh.Amount.Valid {
			return s.advance(ctx, sess, snap, msgRetry)
		}
		log.Debug().Msg("awaited answer not recognised, starting over")
	}

	p := parser.Parse(text, snap.context())
	if s.assistant != nil && !p.Complete() {
		filled, err := s.assistant.Complete(ctx, text, p, snap.context())
		if err != nil {
			log.Warn().Err(err).Msg("assistant could not complete message")
		} else {
			p = filled
		}
	}

	if !p.Amount.Valid && p.Type == "" {
		s.sessions.Delete(conversationID)
		return Reply{Text: msgNotUnderstood}, nil
	}

	log.Debug().
		Float64("confidence", p.Confidence).
		Strs("missing", p.MissingFields).
		Msg("message parsed")

	return s.advance(ctx, session.Session{ConversationID: conversationID, Text: text, Draft: p}, snap, "")
}

// HandleChoice applies a button press: "type:<type>", "cat:<id>",
// "acc:<id>", "confirm" or "cancel".
func (s *Service) HandleChoice(ctx context.Context, conversationID, data string) (Reply, error) {
	sess, ok := s.sessions.Active(conversationID)
	if !ok {
		return Reply{Text: msgExpired}, nil
	}
	if data == ChoiceCancel {
		return s.Cancel(conversationID), nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("HandleChoice: %w", err)
	}

	switch {
	case data == ChoiceConfirm:
		if sess.Awaiting != "" {
			return s.advance(ctx, sess, snap, "")
		}
		return s.commit(ctx, sess, snap)

	case strings.HasPrefix(data, PrefixType):
		t := domain.TransactionType(strings.TrimPrefix(data, PrefixType))
		if !t.Valid() {
			return Reply{}, fmt.Errorf("HandleChoice: %w: %q", ErrUnknownChoice, data)
		}
		sess = setType(sess, t)

	case strings.HasPrefix(data, PrefixCategory):
		c, ok := snap.category(strings.TrimPrefix(data, PrefixCategory))
		if !ok {
			return s.advance(ctx, sess, snap, msgRetry)
		}
		if sess.Draft.Type == "" {
			sess.Draft.Type = c.Type
		}
		if c.Type != sess.Draft.Type {
			return s.advance(ctx, sess, snap, msgRetry)
		}
		sess.Draft.Category = strings.ToLower(c.Name)
		sess.CategoryID = c.ID

	case strings.HasPrefix(data, PrefixAccount):
		a, ok := snap.account(strings.TrimPrefix(data, PrefixAccount))
		if !ok {
			return s.advance(ctx, sess, snap, msgRetry)
		}
		sess.Draft.Account = a.Name
		sess.Draft.AccountID = a.ID

	default:
		return Reply{}, fmt.Errorf("HandleChoice: %w: %q", ErrUnknownChoice, data)
	}

	return s.advance(ctx, sess, snap, "")
}

// advance stores the session and asks for the first missing field, or for
// confirmation when nothing is missing.
func (s *Service) advance(ctx context.Context, sess session.Session, snap snapshot, prefix string) (Reply, error) {
	p := sess.Draft
	if p.AccountID == "" && len(snap.accounts) == 1 {
		p.Account = snap.accounts[0].Name
		p.AccountID = snap.accounts[0].ID
	}
	p.Confidence, p.MissingFields = parser.Score(p, len(snap.accounts))
	sess.Draft = p

	if len(p.MissingFields) > 0 {
		sess.Awaiting = p.MissingFields[0]
		sess.Warning = ""
		s.sessions.Put(sess)
		reply := question(sess.Awaiting, p, snap)
		reply.Text = prefix + reply.Text
		return reply, nil
	}

	sess.Awaiting = ""
	sess.Warning = s.duplicateWarning(ctx, sess, snap)
	s.sessions.Put(sess)
	return confirmation(sess, snap), nil
}

func (s *Service) commit(ctx context.Context, sess session.Session, snap snapshot) (Reply, error) {
	log := logger.ForConversation(s.log, sess.ConversationID)
	p := sess.Draft
	now := s.now()

	categoryID := sess.CategoryID
	if categoryID == "" {
		categoryID, _ = parser.ResolveCategoryID(p.Category, p.Type, snap.categories)
	}

	tx := &domain.Transaction{
		AccountID:   p.AccountID,
		CategoryID:  categoryID,
		Type:        p.Type,
		Amount:      p.Amount.Decimal,
		Date:        domain.DateOnly(now),
		Description: p.Description,
		Source:      SourceFor(sess.ConversationID),
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return Reply{}, fmt.Errorf("HandleChoice: saving transaction: %w", err)
	}
	s.sessions.Delete(sess.ConversationID)
	log.Info().
		Str("transaction_id", tx.ID).
		Str("account_id", tx.AccountID).
		Str("amount", tx.Amount.String()).
		Msg("transaction recorded")

	if s.onCommit != nil {
		s.onCommit(*tx)
	}
	s.publish(ctx, tx)

	currency := snap.currency(p)

	reply := Reply{
		Text:        fmt.Sprintf("✅ %s de %s registrada: %s", TypeLabel(tx.Type), FormatMoney(tx.Amount, currency), tx.Description),
		Transaction: tx,
	}
	if tx.Type != domain.TransactionTypeExpense {
		return reply, nil
	}

	res, err := forecast.ForAccount(ctx, s.store, tx.AccountID, now)
	if err != nil {
		log.Warn().Err(err).Msg("could not compute forecast after commit")
		return reply, nil
	}
	reply.Forecast = &res

	if res.Alerting() && s.notificationsEnabled(ctx, tx.AccountID) {
		reply.Alert = AlertText(res, currency)
	}
	return reply, nil
}

func (s *Service) notificationsEnabled(ctx context.Context, accountID string) bool {
	settings, err := s.store.GetSettings(ctx, accountID)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("could not load settings")
		return false
	}
	return settings == nil || settings.NotificationsEnabled
}

func (s *Service) publish(ctx context.Context, tx *domain.Transaction) {
	if s.publisher == nil {
		return
	}
	pending := jobs.ForTransaction(tx.AccountID, tx.ID, tx.Date, s.mirror, s.notion)
	for _, job := range pending {
		if err := s.publisher.Publish(ctx, job); err != nil {
			s.log.Warn().Err(err).Str("job_type", string(job.Type)).Msg("could not publish job")
		}
	}
}

// duplicateWarning looks for a transaction of the same account, type and
// amount recorded today with a similar description.
func (s *Service) duplicateWarning(ctx context.Context, sess session.Session, snap snapshot) string {
	p := sess.Draft
	today := domain.DateOnly(s.now())
	existing, err := s.store.ListTransactions(ctx, p.AccountID, today, today.AddDate(0, 0, 1))
	if err != nil {
		s.log.Warn().Err(err).Msg("could not check for duplicates")
		return ""
	}
	for _, tx := range existing {
		if tx.Type == p.Type && tx.Amount.Equal(p.Amount.Decimal) && similar(tx.Description, p.Description) {
			return fmt.Sprintf("⚠️ Já existe uma transação parecida hoje: %s de %s (%s).",
				TypeLabel(tx.Type), FormatMoney(tx.Amount, snap.currency(p)), tx.Description)
		}
	}
	return ""
}

func similar(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return true
	}
	n := max(len([]rune(a)), len([]rune(b)))
	return float64(levenshtein.ComputeDistance(a, b))/float64(n) < duplicateMaxDistance
}

// SourceFor derives the transaction source from a conversation ID.
func SourceFor(conversationID string) string {
	switch {
	case strings.HasPrefix(conversationID, "tg:"):
		return domain.SourceTelegram
	case strings.HasPrefix(conversationID, "cli:"):
		return domain.SourceCLI
	default:
		return domain.SourceChat
	}
}

// AlertText describes a warning or over-budget forecast.
func AlertText(res forecast.Result, currency string) string {
	spent := FormatMoney(res.CurrentMonthSpent, currency)
	budget := FormatMoney(res.MonthlyEstimate, currency)
	if res.Status == forecast.StatusOverBudget {
		return fmt.Sprintf("🚨 Orçamento do mês estourado: %s de %s.", spent, budget)
	}
	return fmt.Sprintf("⚠️ Você já usou %s%% do orçamento do mês (%s de %s).",
		decimal.NewFromFloat(res.BudgetUsedPercent).Round(0).String(), spent, budget)
}
