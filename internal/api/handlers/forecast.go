package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/dvloznov/finchat/internal/api/middleware"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/forecast"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ForecastCache keeps computed forecasts per account until a write to the
// account invalidates them or the TTL passes.
type ForecastCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewForecastCache creates a cache whose entries live for ttl.
func NewForecastCache(ttl time.Duration) (*ForecastCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("NewForecastCache: %w", err)
	}
	return &ForecastCache{cache: cache, ttl: ttl}, nil
}

func forecastKey(accountID string) string {
	return "forecast:" + accountID
}

// Get returns the cached forecast of accountID.
func (c *ForecastCache) Get(accountID string) (forecast.Result, bool) {
	v, ok := c.cache.Get(forecastKey(accountID))
	if !ok {
		return forecast.Result{}, false
	}
	res, ok := v.(forecast.Result)
	return res, ok
}

// Set stores res for accountID.
func (c *ForecastCache) Set(accountID string, res forecast.Result) {
	c.cache.SetWithTTL(forecastKey(accountID), res, 1, c.ttl)
	c.cache.Wait()
}

// Invalidate drops the cached forecast of accountID.
func (c *ForecastCache) Invalidate(accountID string) {
	c.cache.Del(forecastKey(accountID))
}

// Close releases the cache.
func (c *ForecastCache) Close() {
	c.cache.Close()
}

// ForecastHandler handles forecast, settings and recurring bill endpoints.
type ForecastHandler struct {
	store store.Store
	cache *ForecastCache
	now   func() time.Time
	log   zerolog.Logger
}

// NewForecastHandler creates a new forecast handler. now defaults to time.Now.
func NewForecastHandler(st store.Store, cache *ForecastCache, now func() time.Time, log zerolog.Logger) *ForecastHandler {
	if now == nil {
		now = time.Now
	}
	return &ForecastHandler{store: st, cache: cache, now: now, log: log}
}

// GetForecast handles GET /api/accounts/{accountID}/forecast
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	if res, ok := h.cache.Get(accountID); ok {
		w.Header().Set("X-Cache", "HIT")
		middleware.WriteJSON(w, http.StatusOK, res)
		return
	}

	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		writeStoreError(w, h.log, err, "Failed to load account")
		return
	}

	res, err := forecast.ForAccount(ctx, h.store, accountID, h.now())
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to compute forecast")
		return
	}
	h.cache.Set(accountID, res)

	w.Header().Set("X-Cache", "MISS")
	middleware.WriteJSON(w, http.StatusOK, res)
}

// GetSettings handles GET /api/accounts/{accountID}/forecast/settings
func (h *ForecastHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		writeStoreError(w, h.log, err, "Failed to load account")
		return
	}
	settings, err := h.store.GetSettings(ctx, accountID)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to load settings")
		return
	}
	if settings == nil {
		settings = &domain.ForecastSettings{
			AccountID:            accountID,
			AlertThreshold:       domain.DefaultAlertThreshold,
			BudgetType:           domain.BudgetTypeFlexible,
			AutoAdjust:           true,
			NotificationsEnabled: true,
		}
	}

	middleware.WriteJSON(w, http.StatusOK, settings)
}

// PutSettings handles PUT /api/accounts/{accountID}/forecast/settings
func (h *ForecastHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		MonthlyBudget        decimal.NullDecimal `json:"monthly_budget"`
		AlertThreshold       int                 `json:"alert_threshold"`
		BudgetType           string              `json:"budget_type"`
		AutoAdjust           *bool               `json:"auto_adjust"`
		NotificationsEnabled *bool               `json:"notifications_enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	switch {
	case req.AlertThreshold < 0 || req.AlertThreshold > 100:
		middleware.WriteError(w, http.StatusBadRequest, "alert_threshold must be between 1 and 100")
		return
	case req.BudgetType != "" && req.BudgetType != domain.BudgetTypeFixed && req.BudgetType != domain.BudgetTypeFlexible:
		middleware.WriteError(w, http.StatusBadRequest, "budget_type must be fixed or flexible")
		return
	case req.MonthlyBudget.Valid && req.MonthlyBudget.Decimal.IsNegative():
		middleware.WriteError(w, http.StatusBadRequest, "monthly_budget must not be negative")
		return
	}

	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		writeStoreError(w, h.log, err, "Failed to load account")
		return
	}

	settings := &domain.ForecastSettings{
		AccountID:            accountID,
		MonthlyBudget:        req.MonthlyBudget,
		AlertThreshold:       req.AlertThreshold,
		BudgetType:           req.BudgetType,
		AutoAdjust:           req.AutoAdjust == nil || *req.AutoAdjust,
		NotificationsEnabled: req.NotificationsEnabled == nil || *req.NotificationsEnabled,
	}
	if err := h.store.UpsertSettings(ctx, settings); err != nil {
		writeStoreError(w, h.log, err, "Failed to save settings")
		return
	}
	h.cache.Invalidate(accountID)

	middleware.WriteJSON(w, http.StatusOK, settings)
}

// ListBills handles GET /api/accounts/{accountID}/bills
func (h *ForecastHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.store.ListBills(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list bills")
		return
	}
	if bills == nil {
		bills = []domain.RecurringBill{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bills": bills,
		"count": len(bills),
	})
}

// CreateBill handles POST /api/accounts/{accountID}/bills
func (h *ForecastHandler) CreateBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		Name   string          `json:"name"`
		Amount decimal.Decimal `json:"amount"`
		DueDay int             `json:"due_day"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || !req.Amount.IsPositive() || req.DueDay < 1 || req.DueDay > 31 {
		middleware.WriteError(w, http.StatusBadRequest, "name, a positive amount and due_day 1-31 are required")
		return
	}

	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		writeStoreError(w, h.log, err, "Failed to load account")
		return
	}

	bill := &domain.RecurringBill{AccountID: accountID, Name: req.Name, Amount: req.Amount, DueDay: req.DueDay}
	if err := h.store.CreateBill(ctx, bill); err != nil {
		writeStoreError(w, h.log, err, "Failed to create bill")
		return
	}
	h.cache.Invalidate(accountID)

	middleware.WriteJSON(w, http.StatusCreated, bill)
}

// MarkBillPaid handles POST /api/accounts/{accountID}/bills/{billID}/paid.
// The body may name the month (YYYY-MM); it defaults to the current one.
func (h *ForecastHandler) MarkBillPaid(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	billID := chi.URLParam(r, "billID")

	var req struct {
		Month string `json:"month"`
	}
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Month == "" {
		req.Month = domain.MonthKey(h.now())
	} else if _, err := time.Parse("2006-01", req.Month); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	if err := h.store.MarkBillPaid(r.Context(), accountID, billID, req.Month); err != nil {
		writeStoreError(w, h.log, err, "Failed to mark bill paid")
		return
	}
	h.cache.Invalidate(accountID)

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"bill_id": billID,
		"month":   req.Month,
	})
}
