// Package tasks runs background jobs published by the chat service, the
// HTTP API and the scheduler.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/export"
	"github.com/dvloznov/finchat/internal/gcs"
	bq "github.com/dvloznov/finchat/internal/infra/bigquery"
	"github.com/dvloznov/finchat/internal/jobs"
	"github.com/dvloznov/finchat/internal/logger"
	"github.com/dvloznov/finchat/internal/notionsync"
	"github.com/rs/zerolog"
)

var (
	// ErrMirrorDisabled is returned for mirror jobs when no BigQuery mirror is configured.
	ErrMirrorDisabled = errors.New("bigquery mirror not configured")
	// ErrNotionDisabled is returned for sync jobs when Notion is not configured.
	ErrNotionDisabled = errors.New("notion sync not configured")
)

// Store is the read side of the ledger the tasks need.
type Store interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error)
}

// Mirror is the subset of the BigQuery mirror used by mirror jobs.
type Mirror interface {
	InsertTransactions(ctx context.Context, rows []*bq.TransactionRow) error
	QueryTransactionsSince(ctx context.Context, accountID string, since time.Time) ([]*bq.TransactionRow, error)
}

// NotionSyncer pushes an account's transactions to Notion.
type NotionSyncer interface {
	SyncTransactions(ctx context.Context, accountID string, from, to time.Time, dryRun bool) (notionsync.Stats, error)
}

// Config wires the optional backends. Nil backends make their job type fail.
type Config struct {
	Storage gcs.StorageService
	Mirror  Mirror
	Notion  NotionSyncer
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Handler dispatches jobs to their implementation.
type Handler struct {
	store   Store
	storage gcs.StorageService
	mirror  Mirror
	notion  NotionSyncer
	log     zerolog.Logger
	now     func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(st Store, cfg Config) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		store:   st,
		storage: cfg.Storage,
		mirror:  cfg.Mirror,
		notion:  cfg.Notion,
		log:     cfg.Logger,
		now:     now,
	}
}

// Handle implements jobs.JobHandler.
func (h *Handler) Handle(ctx context.Context, job *jobs.Job) error {
	log := h.log.With().
		Str("job_id", job.JobID).
		Str("job_type", string(job.Type)).
		Str("account_id", job.AccountID).
		Logger()
	ctx = logger.WithContext(ctx, log)

	var err error
	switch job.Type {
	case jobs.JobTypeExport:
		job.Result, err = h.export(ctx, job)
	case jobs.JobTypeMirrorBigQuery:
		job.Result, err = h.mirrorTransactions(ctx, job)
	case jobs.JobTypeSyncNotion:
		job.Result, err = h.syncNotion(ctx, job)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}
	if err != nil {
		return fmt.Errorf("Handle %s: %w", job.Type, err)
	}

	log.Info().Str("result", job.Result).Msg("Job finished")
	return nil
}

// export builds the file and uploads it. The result is the storage URI.
func (h *Handler) export(ctx context.Context, job *jobs.Job) (string, error) {
	if h.storage == nil {
		return "", errors.New("no export storage configured")
	}
	format, err := export.ParseFormat(job.Format)
	if err != nil {
		return "", err
	}

	account, err := h.store.GetAccount(ctx, job.AccountID)
	if err != nil {
		return "", fmt.Errorf("loading account: %w", err)
	}
	categories, err := h.store.ListCategories(ctx)
	if err != nil {
		return "", fmt.Errorf("loading categories: %w", err)
	}
	from, to := bounds(job)
	txs, err := h.store.ListTransactions(ctx, account.ID, from, to)
	if err != nil {
		return "", fmt.Errorf("loading transactions: %w", err)
	}

	data, err := export.Build(format, *account, categories, txs)
	if err != nil {
		return "", err
	}

	object := gcs.ExportObjectName(account.ID, h.now(), format.Extension())
	uri, err := h.storage.Upload(ctx, object, data, format.ContentType())
	if err != nil {
		return "", fmt.Errorf("uploading export: %w", err)
	}
	return uri, nil
}

// mirrorTransactions copies either the listed transactions or, for backfill
// jobs, every transaction in the range that the mirror does not have yet.
func (h *Handler) mirrorTransactions(ctx context.Context, job *jobs.Job) (string, error) {
	if h.mirror == nil {
		return "", ErrMirrorDisabled
	}

	categories, err := h.store.ListCategories(ctx)
	if err != nil {
		return "", fmt.Errorf("loading categories: %w", err)
	}
	categoryNames := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}
	accounts := map[string]domain.Account{}
	accountFor := func(id string) (domain.Account, error) {
		if a, ok := accounts[id]; ok {
			return a, nil
		}
		a, err := h.store.GetAccount(ctx, id)
		if err != nil {
			return domain.Account{}, fmt.Errorf("loading account %s: %w", id, err)
		}
		accounts[id] = *a
		return *a, nil
	}

	var txs []domain.Transaction
	if len(job.TransactionIDs) > 0 {
		for _, id := range job.TransactionIDs {
			tx, err := h.store.GetTransaction(ctx, id)
			if err != nil {
				return "", fmt.Errorf("loading transaction %s: %w", id, err)
			}
			txs = append(txs, *tx)
		}
	} else {
		txs, err = h.pendingMirror(ctx, job)
		if err != nil {
			return "", err
		}
	}

	now := h.now()
	rows := make([]*bq.TransactionRow, 0, len(txs))
	for _, tx := range txs {
		account, err := accountFor(tx.AccountID)
		if err != nil {
			return "", err
		}
		rows = append(rows, bq.NewTransactionRow(tx, account, categoryNames[tx.CategoryID], now))
	}

	if job.DryRun {
		return fmt.Sprintf("would mirror %d transactions", len(rows)), nil
	}
	if err := h.mirror.InsertTransactions(ctx, rows); err != nil {
		return "", err
	}
	return fmt.Sprintf("mirrored %d transactions", len(rows)), nil
}

// pendingMirror lists transactions in the job range missing from the mirror.
// An empty AccountID covers every account.
func (h *Handler) pendingMirror(ctx context.Context, job *jobs.Job) ([]domain.Transaction, error) {
	accountIDs := []string{job.AccountID}
	if job.AccountID == "" {
		accounts, err := h.store.ListAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading accounts: %w", err)
		}
		accountIDs = accountIDs[:0]
		for _, a := range accounts {
			accountIDs = append(accountIDs, a.ID)
		}
	}

	from, to := bounds(job)
	var pending []domain.Transaction
	for _, accountID := range accountIDs {
		txs, err := h.store.ListTransactions(ctx, accountID, from, to)
		if err != nil {
			return nil, fmt.Errorf("loading transactions: %w", err)
		}
		if len(txs) == 0 {
			continue
		}

		mirrored, err := h.mirror.QueryTransactionsSince(ctx, accountID, from)
		if err != nil {
			return nil, fmt.Errorf("reading mirror: %w", err)
		}
		seen := make(map[string]bool, len(mirrored))
		for _, r := range mirrored {
			seen[r.TransactionID] = true
		}
		for _, tx := range txs {
			if !seen[tx.ID] {
				pending = append(pending, tx)
			}
		}
	}
	return pending, nil
}

func (h *Handler) syncNotion(ctx context.Context, job *jobs.Job) (string, error) {
	if h.notion == nil {
		return "", ErrNotionDisabled
	}
	if job.AccountID == "" {
		return "", errors.New("account_id is required")
	}

	from, to := bounds(job)
	stats, err := h.notion.SyncTransactions(ctx, job.AccountID, from, to, job.DryRun)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("created %d, updated %d, archived %d, failed %d",
		stats.Created, stats.Updated, stats.Archived, stats.Failed), nil
}

func bounds(job *jobs.Job) (from, to time.Time) {
	if job.From != nil {
		from = *job.From
	}
	if job.To != nil {
		to = *job.To
	}
	return from, to
}
