// Package bot serves the chat flow over Telegram.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finchat/internal/chat"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/export"
	"github.com/dvloznov/finchat/internal/forecast"
	"github.com/dvloznov/finchat/internal/logger"
	"github.com/dvloznov/finchat/internal/store"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// buttonsPerRow is the inline keyboard width.
const buttonsPerRow = 2

const (
	msgHelp = "Olá! Me conte seus gastos e receitas em texto livre, por exemplo:\n" +
		"• gastei 50 no mercado\n" +
		"• recebi 3000 de salário\n" +
		"• 25,90 uber no nubank\n\n" +
		"Comandos:\n" +
		"/contas lista suas contas\n" +
		"/previsao [conta] mostra a previsão do mês\n" +
		"/exportar [csv|xlsx] [conta] envia as transações do mês\n" +
		"/cancelar descarta a transação em andamento"
	msgUnknownCommand = "Comando desconhecido. Envie /ajuda para ver os comandos."
	msgNoAccounts     = "Nenhuma conta cadastrada."
	msgPickAccount    = "Você tem mais de uma conta. Informe qual, por exemplo: /%s %s"
	msgAccountMissing = "Não encontrei a conta \"%s\"."
	msgFailure        = "Algo deu errado. Tente novamente em instantes."
	msgNotAllowed     = "Este chat não está autorizado. Peça para liberar o id %d."
)

// Sender is the part of tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ Sender = (*tgbotapi.BotAPI)(nil)

// Bot routes Telegram updates to the chat service and answers commands.
// Only chats listed in allowed are served.
type Bot struct {
	sender  Sender
	chat    *chat.Service
	store   store.Store
	allowed map[int64]bool
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a Bot serving the chats in allowedChats. An empty list serves
// no chat at all. now defaults to time.Now.
func New(sender Sender, svc *chat.Service, st store.Store, allowedChats []int64, log zerolog.Logger, now func() time.Time) *Bot {
	if now == nil {
		now = time.Now
	}
	allowed := make(map[int64]bool, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = true
	}
	return &Bot{sender: sender, chat: svc, store: st, allowed: allowed, log: log, now: now}
}

// ConversationID is the chat-service conversation of a Telegram chat.
func ConversationID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// Run handles updates until ctx is cancelled or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.Handle(ctx, update)
		}
	}
}

// Handle processes a single update. Failures are logged and reported to
// the user; they never stop the loop. Updates from chats that are not
// allowed get a short refusal and touch no data.
func (b *Bot) Handle(ctx context.Context, update tgbotapi.Update) {
	if from := update.FromChat(); from != nil && !b.allowed[from.ID] {
		b.log.Warn().Int64("chat_id", from.ID).Msg("Update from unauthorized chat")
		if update.Message != nil {
			b.sendText(from.ID, fmt.Sprintf(msgNotAllowed, from.ID))
		}
		return
	}

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	log := logger.ForConversation(b.log, ConversationID(chatID))

	if msg.IsCommand() {
		if err := b.handleCommand(ctx, chatID, msg.Command(), strings.Fields(msg.CommandArguments())); err != nil {
			log.Error().Err(err).Str("command", msg.Command()).Msg("Command failed")
			b.sendText(chatID, msgFailure)
		}
		return
	}

	reply, err := b.chat.HandleMessage(ctx, ConversationID(chatID), msg.Text)
	if err != nil {
		log.Error().Err(err).Msg("Chat message failed")
		b.sendText(chatID, msgFailure)
		return
	}
	b.sendReply(chatID, reply)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("Failed to acknowledge callback")
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	reply, err := b.chat.HandleChoice(ctx, ConversationID(chatID), cb.Data)
	if err != nil {
		if !errors.Is(err, chat.ErrUnknownChoice) {
			logger.ForConversation(b.log, ConversationID(chatID)).Error().Err(err).Msg("Chat choice failed")
		}
		b.sendText(chatID, msgFailure)
		return
	}
	b.sendReply(chatID, reply)
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command string, args []string) error {
	switch command {
	case "start", "ajuda", "help":
		b.sendText(chatID, msgHelp)
		return nil
	case "cancelar":
		b.sendReply(chatID, b.chat.Cancel(ConversationID(chatID)))
		return nil
	case "contas":
		return b.listAccounts(ctx, chatID)
	case "previsao":
		return b.showForecast(ctx, chatID, strings.Join(args, " "))
	case "exportar":
		return b.sendExport(ctx, chatID, args)
	default:
		b.sendText(chatID, msgUnknownCommand)
		return nil
	}
}

func (b *Bot) listAccounts(ctx context.Context, chatID int64) error {
	accounts, err := b.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listAccounts: %w", err)
	}
	if len(accounts) == 0 {
		b.sendText(chatID, msgNoAccounts)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Suas contas:")
	for _, a := range accounts {
		fmt.Fprintf(&sb, "\n• %s (%s)", a.Name, a.Currency)
	}
	b.sendText(chatID, sb.String())
	return nil
}

// pickAccount resolves the account named in a command, defaulting to the
// only account. ok is false when a message was already sent instead.
func (b *Bot) pickAccount(ctx context.Context, chatID int64, command, name string) (domain.Account, bool, error) {
	accounts, err := b.store.ListAccounts(ctx)
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("pickAccount: %w", err)
	}
	switch {
	case len(accounts) == 0:
		b.sendText(chatID, msgNoAccounts)
		return domain.Account{}, false, nil
	case name == "" && len(accounts) == 1:
		return accounts[0], true, nil
	case name == "":
		b.sendText(chatID, fmt.Sprintf(msgPickAccount, command, accounts[0].Name))
		return domain.Account{}, false, nil
	}

	for _, a := range accounts {
		if strings.EqualFold(a.Name, name) {
			return a, true, nil
		}
	}
	b.sendText(chatID, fmt.Sprintf(msgAccountMissing, name))
	return domain.Account{}, false, nil
}

func (b *Bot) showForecast(ctx context.Context, chatID int64, name string) error {
	account, ok, err := b.pickAccount(ctx, chatID, "previsao", name)
	if err != nil || !ok {
		return err
	}

	res, err := forecast.ForAccount(ctx, b.store, account.ID, b.now())
	if err != nil {
		return fmt.Errorf("showForecast: %w", err)
	}
	b.sendText(chatID, ForecastText(account, res))
	return nil
}

func (b *Bot) sendExport(ctx context.Context, chatID int64, args []string) error {
	format := export.FormatCSV
	if len(args) > 0 {
		if f, err := export.ParseFormat(args[0]); err == nil {
			format = f
			args = args[1:]
		}
	}

	account, ok, err := b.pickAccount(ctx, chatID, "exportar "+string(format), strings.Join(args, " "))
	if err != nil || !ok {
		return err
	}

	now := b.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	txs, err := b.store.ListTransactions(ctx, account.ID, from, from.AddDate(0, 1, 0))
	if err != nil {
		return fmt.Errorf("sendExport: loading transactions: %w", err)
	}
	categories, err := b.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("sendExport: loading categories: %w", err)
	}

	data, err := export.Build(format, account, categories, txs)
	if err != nil {
		return fmt.Errorf("sendExport: %w", err)
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("%s-%s.%s", strings.ToLower(account.Name), domain.MonthKey(now), format.Extension()),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("%d transações de %s", len(txs), account.Name)
	if _, err := b.sender.Send(doc); err != nil {
		return fmt.Errorf("sendExport: sending document: %w", err)
	}
	return nil
}

func (b *Bot) sendReply(chatID int64, reply chat.Reply) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Options) > 0 {
		msg.ReplyMarkup = Keyboard(reply.Options)
	}
	b.send(msg)

	if reply.Alert != "" {
		b.sendText(chatID, reply.Alert)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.sender.Send(msg); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send message")
	}
}

// Keyboard renders options as an inline keyboard.
func Keyboard(options []chat.Option) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(options); i += buttonsPerRow {
		end := min(i+buttonsPerRow, len(options))
		var row []tgbotapi.InlineKeyboardButton
		for _, o := range options[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(o.Label, o.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

var statusLabels = map[forecast.Status]string{
	forecast.StatusNoBudget:    "sem orçamento definido",
	forecast.StatusOverBudget:  "🚨 acima do orçamento",
	forecast.StatusWarning:     "⚠️ perto do limite",
	forecast.StatusUnderBudget: "✅ abaixo do orçamento",
	forecast.StatusOnTrack:     "👍 dentro do previsto",
}

// ForecastText renders a forecast for Telegram.
func ForecastText(account domain.Account, res forecast.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Previsão do mês: %s\n", account.Name)
	fmt.Fprintf(&sb, "Gasto no mês: %s\n", chat.FormatMoney(res.CurrentMonthSpent, account.Currency))
	fmt.Fprintf(&sb, "Gasto na semana: %s\n", chat.FormatMoney(res.CurrentWeekSpent, account.Currency))
	if res.Status == forecast.StatusNoBudget {
		fmt.Fprintf(&sb, "Status: %s", statusLabels[res.Status])
		return sb.String()
	}

	fmt.Fprintf(&sb, "Orçamento: %s", chat.FormatMoney(res.MonthlyEstimate, account.Currency))
	if !res.IsUsingCustomBudget {
		sb.WriteString(" (média dos últimos meses)")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Restante: %s em %d dias\n", chat.FormatMoney(res.RemainingThisMonth, account.Currency), res.DaysRemaining)
	if res.UnpaidBills.IsPositive() {
		fmt.Fprintf(&sb, "Contas a pagar: %s\n", chat.FormatMoney(res.UnpaidBills, account.Currency))
	}
	fmt.Fprintf(&sb, "Projeção: %s\n", chat.FormatMoney(res.ProjectedMonthlyTotal, account.Currency))
	fmt.Fprintf(&sb, "Status: %s", statusLabels[res.Status])
	return sb.String()
}
