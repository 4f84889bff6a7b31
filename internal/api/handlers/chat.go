package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/finchat/internal/api/middleware"
	"github.com/dvloznov/finchat/internal/chat"
	"github.com/dvloznov/finchat/internal/parser"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/rs/zerolog"
)

// ConversationHeader carries the web chat conversation ID.
const ConversationHeader = "X-Conversation-ID"

// ChatHandler exposes the parser and the chat flow over HTTP.
type ChatHandler struct {
	store store.Store
	svc   *chat.Service
	log   zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(st store.Store, svc *chat.Service, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{store: st, svc: svc, log: log}
}

type textRequest struct {
	Text string `json:"text"`
}

// Parse handles POST /api/chat/parse. It only parses; nothing is stored.
func (h *ChatHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx := r.Context()
	accounts, err := h.store.ListAccounts(ctx)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list accounts")
		return
	}
	categories, err := h.store.ListCategories(ctx)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list categories")
		return
	}

	parsed := parser.Parse(req.Text, parser.Context{Accounts: accounts, Categories: categories})
	categoryID, _ := parser.ResolveCategoryID(parsed.Category, parsed.Type, categories)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"parsed":      parsed,
		"category_id": categoryID,
	})
}

// Message handles POST /api/chat/messages
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.svc.HandleMessage(r.Context(), conversationID, req.Text)
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("Chat message failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to handle message")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

// Choice handles POST /api/chat/choices with the data of a selected option.
func (h *ChatHandler) Choice(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req struct {
		Data string `json:"data"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.svc.HandleChoice(r.Context(), conversationID, req.Data)
	if errors.Is(err, chat.ErrUnknownChoice) {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown choice")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", conversationID).Msg("Chat choice failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to handle choice")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

// conversation reads the conversation ID. Web IDs are namespaced so they
// cannot collide with Telegram chats.
func (h *ChatHandler) conversation(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(ConversationHeader))
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, ConversationHeader+" header is required")
		return "", false
	}
	return "web:" + id, true
}
