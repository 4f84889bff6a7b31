package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/finchat/internal/api/middleware"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/rs/zerolog"
)

// AccountsHandler handles account and category endpoints.
type AccountsHandler struct {
	store    store.Store
	onChange func()
	log      zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler. onChange, when set,
// runs after an account or category is created.
func NewAccountsHandler(st store.Store, onChange func(), log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{store: st, onChange: onChange, log: log}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Currency string `json:"currency"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx := r.Context()
	if _, err := h.store.FindAccountByName(ctx, req.Name); err == nil {
		middleware.WriteError(w, http.StatusConflict, "Account already exists")
		return
	}

	account := &domain.Account{Name: req.Name, Currency: strings.ToUpper(req.Currency)}
	if err := h.store.CreateAccount(ctx, account); err != nil {
		writeStoreError(w, h.log, err, "Failed to create account")
		return
	}
	h.changed()

	h.log.Info().Str("account_id", account.ID).Str("name", account.Name).Msg("Account created")
	middleware.WriteJSON(w, http.StatusCreated, account)
}

// ListCategories handles GET /api/categories?type=expense
func (h *AccountsHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list categories")
		return
	}

	typ := domain.TransactionType(r.URL.Query().Get("type"))
	filtered := make([]domain.Category, 0, len(categories))
	for _, c := range categories {
		if typ == "" || c.Type == typ {
			filtered = append(filtered, c)
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": filtered,
		"count":      len(filtered),
	})
}

// CreateCategory handles POST /api/categories
func (h *AccountsHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string                 `json:"name"`
		Type domain.TransactionType `json:"type"`
		Icon string                 `json:"icon"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || !req.Type.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "name and a valid type are required")
		return
	}

	category := &domain.Category{Name: req.Name, Type: req.Type, Icon: req.Icon}
	if err := h.store.CreateCategory(r.Context(), category); err != nil {
		writeStoreError(w, h.log, err, "Failed to create category")
		return
	}
	h.changed()

	middleware.WriteJSON(w, http.StatusCreated, category)
}

func (h *AccountsHandler) changed() {
	if h.onChange != nil {
		h.onChange()
	}
}
