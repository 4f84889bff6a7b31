package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finchat/internal/api/middleware"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/jobs"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	store     store.Store
	cache     *ForecastCache
	publisher jobs.Publisher
	mirror    bool
	notion    bool
	now       func() time.Time
	log       zerolog.Logger
}

// TransactionsOptions configures the follow-up jobs of new transactions.
type TransactionsOptions struct {
	Publisher        jobs.Publisher
	MirrorToBigQuery bool
	SyncNotion       bool
	Now              func() time.Time
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(st store.Store, cache *ForecastCache, opts TransactionsOptions, log zerolog.Logger) *TransactionsHandler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TransactionsHandler{
		store:     st,
		cache:     cache,
		publisher: opts.Publisher,
		mirror:    opts.MirrorToBigQuery,
		notion:    opts.SyncNotion,
		now:       now,
		log:       log,
	}
}

// ListTransactions handles GET /api/accounts/{accountID}/transactions?from=&to=
// with from inclusive and to exclusive.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	from, ok := parseDateParam(r, "from")
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid from format")
		return
	}
	to, ok := parseDateParam(r, "to")
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid to format")
		return
	}

	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		writeStoreError(w, h.log, err, "Failed to load account")
		return
	}
	transactions, err := h.store.ListTransactions(ctx, accountID, from, to)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CreateTransaction handles POST /api/accounts/{accountID}/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		Type        domain.TransactionType `json:"type"`
		Amount      decimal.Decimal        `json:"amount"`
		CategoryID  string                 `json:"category_id"`
		Description string                 `json:"description"`
		Date        string                 `json:"date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Type.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "type must be income or expense")
		return
	}
	if !req.Amount.IsPositive() {
		middleware.WriteError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	date := domain.DateOnly(h.now())
	if req.Date != "" {
		d, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date format")
			return
		}
		date = d
	}

	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		writeStoreError(w, h.log, err, "Failed to load account")
		return
	}
	if req.CategoryID != "" {
		ok, err := h.categoryMatches(r, req.CategoryID, req.Type)
		if err != nil {
			writeStoreError(w, h.log, err, "Failed to load categories")
			return
		}
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, "category_id does not match a category of this type")
			return
		}
	}

	tx := &domain.Transaction{
		AccountID:   accountID,
		CategoryID:  req.CategoryID,
		Type:        req.Type,
		Amount:      req.Amount,
		Date:        date,
		Description: strings.TrimSpace(req.Description),
		Source:      domain.SourceAPI,
	}
	if err := h.store.CreateTransaction(ctx, tx); err != nil {
		writeStoreError(w, h.log, err, "Failed to create transaction")
		return
	}
	h.cache.Invalidate(accountID)
	h.publish(r, tx)

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{transactionID}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "transactionID")

	tx, err := h.store.GetTransaction(ctx, id)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to load transaction")
		return
	}
	if err := h.store.DeleteTransaction(ctx, id); err != nil {
		writeStoreError(w, h.log, err, "Failed to delete transaction")
		return
	}
	h.cache.Invalidate(tx.AccountID)

	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionsHandler) categoryMatches(r *http.Request, id string, typ domain.TransactionType) (bool, error) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		return false, err
	}
	for _, c := range categories {
		if c.ID == id {
			return c.Type == typ, nil
		}
	}
	return false, nil
}

func (h *TransactionsHandler) publish(r *http.Request, tx *domain.Transaction) {
	if h.publisher == nil {
		return
	}
	for _, job := range jobs.ForTransaction(tx.AccountID, tx.ID, tx.Date, h.mirror, h.notion) {
		if err := h.publisher.Publish(r.Context(), job); err != nil {
			h.log.Warn().Err(err).Str("job_type", string(job.Type)).Msg("Failed to enqueue follow-up job")
		}
	}
}
