// Package api wires the HTTP handlers into a chi router.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/finchat/internal/api/handlers"
	"github.com/dvloznov/finchat/internal/api/middleware"
	"github.com/dvloznov/finchat/internal/chat"
	"github.com/dvloznov/finchat/internal/gcs"
	"github.com/dvloznov/finchat/internal/jobs"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Store     store.Store
	Chat      *chat.Service
	Forecasts *handlers.ForecastCache
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	Storage   gcs.StorageService

	JWTSecret        string
	URLExpiry        time.Duration
	MirrorToBigQuery bool
	SyncNotion       bool

	Logger zerolog.Logger
	Now    func() time.Time
}

// NewRouter builds the API router. /health is left unauthenticated, and
// so is /api when JWTSecret is empty.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if d.JWTSecret == "" {
		log.Warn().Msg("No JWT secret configured - API authentication is disabled")
	}

	accounts := handlers.NewAccountsHandler(d.Store, d.Chat.InvalidateSnapshot, log)
	transactions := handlers.NewTransactionsHandler(d.Store, d.Forecasts, handlers.TransactionsOptions{
		Publisher:        d.Publisher,
		MirrorToBigQuery: d.MirrorToBigQuery,
		SyncNotion:       d.SyncNotion,
		Now:              d.Now,
	}, log)
	forecasts := handlers.NewForecastHandler(d.Store, d.Forecasts, d.Now, log)
	chatHandler := handlers.NewChatHandler(d.Store, d.Chat, log)
	exports := handlers.NewExportsHandler(d.Store, d.Publisher, d.Jobs, d.Storage, d.URLExpiry, log)
	jobsHandler := handlers.NewJobsHandler(d.Jobs, log)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.JWTSecret))

		r.Get("/accounts", accounts.ListAccounts)
		r.Post("/accounts", accounts.CreateAccount)
		r.Get("/categories", accounts.ListCategories)
		r.Post("/categories", accounts.CreateCategory)

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/transactions", transactions.ListTransactions)
			r.Post("/transactions", transactions.CreateTransaction)

			r.Get("/forecast", forecasts.GetForecast)
			r.Get("/forecast/settings", forecasts.GetSettings)
			r.Put("/forecast/settings", forecasts.PutSettings)

			r.Get("/bills", forecasts.ListBills)
			r.Post("/bills", forecasts.CreateBill)
			r.Post("/bills/{billID}/paid", forecasts.MarkBillPaid)

			r.Post("/exports", exports.CreateExport)
		})
		r.Delete("/transactions/{transactionID}", transactions.DeleteTransaction)

		r.Post("/chat/parse", chatHandler.Parse)
		r.Post("/chat/messages", chatHandler.Message)
		r.Post("/chat/choices", chatHandler.Choice)

		r.Get("/exports/{jobID}/download", exports.Download)

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{jobID}", jobsHandler.GetJob)
	})

	return r
}
