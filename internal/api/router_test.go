package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finchat/internal/api/handlers"
	"github.com/dvloznov/finchat/internal/api/middleware"
	"github.com/dvloznov/finchat/internal/chat"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/gcs"
	"github.com/dvloznov/finchat/internal/jobs"
	"github.com/dvloznov/finchat/internal/jobs/inmemory"
	"github.com/dvloznov/finchat/internal/store/sqlite"
	"github.com/dvloznov/finchat/internal/tasks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *sqlite.Store
	jobs    *inmemory.Store
	token   string
}

func newTestServer(t *testing.T, secret string, opts ...func(*Deps)) *testServer {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()
	now := func() time.Time { return testNow }

	st, err := sqlite.OpenStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.SeedDefaultCategories(ctx))

	storage, err := gcs.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(16, jobStore, inmemory.WithWorkers(1))
	taskHandler := tasks.NewHandler(st, tasks.Config{Storage: storage, Logger: log, Now: now})
	require.NoError(t, queue.Start(ctx, taskHandler.Handle))
	t.Cleanup(func() { _ = queue.Close() })

	cache, err := handlers.NewForecastCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	svc, err := chat.NewService(st, chat.Config{
		OnCommit: func(tx domain.Transaction) { cache.Invalidate(tx.AccountID) },
		Logger:   log,
		Now:      now,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	s := &testServer{t: t, store: st, jobs: jobStore}
	if secret != "" {
		s.token, err = middleware.NewToken(secret, "tester", time.Hour)
		require.NoError(t, err)
	}
	deps := Deps{
		Store:     st,
		Chat:      svc,
		Forecasts: cache,
		Publisher: queue,
		Jobs:      jobStore,
		Storage:   storage,
		JWTSecret: secret,
		Logger:    log,
		Now:       now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	s.handler = NewRouter(deps)
	return s
}

func (s *testServer) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createAccount(name string) domain.Account {
	rec := s.do(http.MethodPost, "/api/accounts", map[string]string{"name": name})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Account](s.t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAPI_RequiresToken(t *testing.T) {
	s := newTestServer(t, "secret")

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/accounts", nil).Code)

	s.token = ""
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/accounts", nil).Code)
}

func TestNewRouter_WarnsWhenAuthDisabled(t *testing.T) {
	for _, tt := range []struct {
		secret string
		warned bool
	}{
		{"", true},
		{"secret", false},
	} {
		var buf bytes.Buffer
		newTestServer(t, tt.secret, func(d *Deps) { d.Logger = zerolog.New(&buf) })
		assert.Equal(t, tt.warned, strings.Contains(buf.String(), "API authentication is disabled"), "secret %q", tt.secret)
	}
}

func TestAccounts(t *testing.T) {
	s := newTestServer(t, "")

	a := s.createAccount("Nubank")
	assert.Equal(t, "BRL", a.Currency)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/accounts", map[string]string{"name": "nubank"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/accounts", map[string]string{"name": " "}).Code)

	rec := s.do(http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Accounts []domain.Account `json:"accounts"`
		Count    int              `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, body.Count)

	rec = s.do(http.MethodGet, "/api/categories?type=income", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[struct {
		Categories []domain.Category `json:"categories"`
	}](t, rec)
	require.NotEmpty(t, cats.Categories)
	for _, c := range cats.Categories {
		assert.Equal(t, domain.TransactionTypeIncome, c.Type)
	}
}

func TestTransactions_AndForecastCache(t *testing.T) {
	s := newTestServer(t, "")
	a := s.createAccount("Nubank")
	base := "/api/accounts/" + a.ID

	rec := s.do(http.MethodPost, base+"/transactions", map[string]interface{}{
		"type": "expense", "amount": 40, "description": "mercado",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"amount":40`)
	assert.Contains(t, rec.Body.String(), `"source":"api"`)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/transactions", map[string]interface{}{
		"type": "expense", "amount": -1,
	}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/transactions", map[string]interface{}{
		"type": "transfer", "amount": 10,
	}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/accounts/missing/transactions", map[string]interface{}{
		"type": "expense", "amount": 10,
	}).Code)

	first := s.do(http.MethodGet, base+"/forecast", nil)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Contains(t, first.Body.String(), `"current_month_spent":40`)

	second := s.do(http.MethodGet, base+"/forecast", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	rec = s.do(http.MethodPost, base+"/transactions", map[string]interface{}{
		"type": "expense", "amount": 10, "date": "2026-10-14",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[domain.Transaction](t, rec)

	third := s.do(http.MethodGet, base+"/forecast", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Contains(t, third.Body.String(), `"current_month_spent":50`)

	rec = s.do(http.MethodGet, base+"/transactions?from=2026-10-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Transaction](t, rec), 1)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, base+"/transactions?from=15/10/2026", nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/transactions/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/transactions/"+created.ID, nil).Code)
}

func TestSettingsAndBills(t *testing.T) {
	s := newTestServer(t, "")
	a := s.createAccount("Nubank")
	base := "/api/accounts/" + a.ID

	rec := s.do(http.MethodGet, base+"/forecast/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	defaults := decode[domain.ForecastSettings](t, rec)
	assert.Equal(t, 80, defaults.AlertThreshold)
	assert.True(t, defaults.NotificationsEnabled)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, base+"/forecast/settings", map[string]interface{}{
		"alert_threshold": 150,
	}).Code)

	rec = s.do(http.MethodPut, base+"/forecast/settings", map[string]interface{}{
		"monthly_budget": 1000, "alert_threshold": 90, "notifications_enabled": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, base+"/bills", map[string]interface{}{"name": "Aluguel", "amount": 300, "due_day": 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decode[domain.RecurringBill](t, rec)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/bills", map[string]interface{}{"name": "x", "amount": 1, "due_day": 32}).Code)

	rec = s.do(http.MethodGet, base+"/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remaining_this_month":700`)
	assert.Contains(t, rec.Body.String(), `"is_using_custom_budget":true`)

	rec = s.do(http.MethodPost, base+"/bills/"+bill.ID+"/paid", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "2026-10")

	rec = s.do(http.MethodGet, base+"/forecast", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), `"remaining_this_month":1000`)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, base+"/bills/missing/paid", nil).Code)

	other := s.createAccount("Itaú")
	rec = s.do(http.MethodPost, "/api/accounts/"+other.ID+"/bills/"+bill.ID+"/paid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a bill cannot be paid through another account")
}

func TestChat(t *testing.T) {
	s := newTestServer(t, "")
	a := s.createAccount("Nubank")

	rec := s.do(http.MethodPost, "/api/chat/parse", map[string]string{"text": "gastei 50 no mercado"})
	require.Equal(t, http.StatusOK, rec.Code)
	parsed := decode[struct {
		Parsed struct {
			Type     string  `json:"type"`
			Amount   float64 `json:"amount"`
			Category string  `json:"category"`
		} `json:"parsed"`
		CategoryID string `json:"category_id"`
	}](t, rec)
	assert.Equal(t, "expense", parsed.Parsed.Type)
	assert.Equal(t, 50.0, parsed.Parsed.Amount)
	assert.NotEmpty(t, parsed.CategoryID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "oi"}).Code)

	rec = s.do(http.MethodPost, "/api/chat/messages", map[string]string{"text": "gastei 50 no mercado"}, handlers.ConversationHeader, "c1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode[chat.Reply](t, rec)
	assert.Contains(t, reply.Text, "Confirma o lançamento?")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/chat/choices", map[string]string{"data": "bogus"}, handlers.ConversationHeader, "c1").Code)

	rec = s.do(http.MethodPost, "/api/chat/choices", map[string]string{"data": chat.ChoiceConfirm}, handlers.ConversationHeader, "c1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply = decode[chat.Reply](t, rec)
	require.NotNil(t, reply.Transaction)
	assert.Equal(t, domain.SourceChat, reply.Transaction.Source)

	txs, err := s.store.ListTransactions(context.Background(), a.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestExports(t *testing.T) {
	s := newTestServer(t, "")
	a := s.createAccount("Nubank")
	base := "/api/accounts/" + a.ID

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, base+"/transactions", map[string]interface{}{
		"type": "expense", "amount": 12.5, "description": "café",
	}).Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base+"/exports", map[string]string{"format": "pdf"}).Code)

	rec := s.do(http.MethodPost, base+"/exports", map[string]string{"format": "csv"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decode[map[string]string](t, rec)["job_id"]
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		job, err := s.jobs.GetJob(context.Background(), jobID)
		return err == nil && job.Status == jobs.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = s.do(http.MethodGet, "/api/exports/"+jobID+"/download", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "-12.50")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/exports/missing/download", nil).Code)

	rec = s.do(http.MethodGet, "/api/jobs?type=export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), jobID)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/jobs/"+jobID, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/jobs/missing", nil).Code)
}
