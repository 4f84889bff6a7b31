package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/gcs"
	bq "github.com/dvloznov/finchat/internal/infra/bigquery"
	"github.com/dvloznov/finchat/internal/jobs"
	"github.com/dvloznov/finchat/internal/notionsync"
	"github.com/dvloznov/finchat/internal/store/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)

type mockMirror struct {
	mirrored []*bq.TransactionRow
	inserted []*bq.TransactionRow
	err      error
}

func (m *mockMirror) InsertTransactions(_ context.Context, rows []*bq.TransactionRow) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, rows...)
	return nil
}

func (m *mockMirror) QueryTransactionsSince(_ context.Context, accountID string, _ time.Time) ([]*bq.TransactionRow, error) {
	var out []*bq.TransactionRow
	for _, r := range m.mirrored {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockSyncer struct {
	accountID string
	from, to  time.Time
	dryRun    bool
}

func (m *mockSyncer) SyncTransactions(_ context.Context, accountID string, from, to time.Time, dryRun bool) (notionsync.Stats, error) {
	m.accountID, m.from, m.to, m.dryRun = accountID, from, to, dryRun
	return notionsync.Stats{Created: 2, Archived: 1, Total: 2}, nil
}

type fixture struct {
	store   *sqlite.Store
	account *domain.Account
	txs     []*domain.Transaction
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.OpenStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.SeedDefaultCategories(ctx))

	f := &fixture{store: st, account: &domain.Account{Name: "Nubank"}}
	require.NoError(t, st.CreateAccount(ctx, f.account))

	for i, amount := range []string{"50", "30.5"} {
		tx := &domain.Transaction{
			AccountID:   f.account.ID,
			Type:        domain.TransactionTypeExpense,
			Amount:      decimal.RequireFromString(amount),
			Date:        time.Date(2026, time.October, 1+i, 0, 0, 0, 0, time.UTC),
			Description: "mercado",
		}
		require.NoError(t, st.CreateTransaction(ctx, tx))
		f.txs = append(f.txs, tx)
	}
	return f
}

func (f *fixture) handler(cfg Config) *Handler {
	cfg.Logger = zerolog.Nop()
	cfg.Now = func() time.Time { return testNow }
	return NewHandler(f.store, cfg)
}

func TestHandle_Export(t *testing.T) {
	f := newFixture(t)
	storage, err := gcs.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	h := f.handler(Config{Storage: storage})

	job := &jobs.Job{JobID: "j1", Type: jobs.JobTypeExport, AccountID: f.account.ID, Format: "csv"}
	require.NoError(t, h.Handle(context.Background(), job))

	assert.True(t, strings.HasPrefix(job.Result, "file://"))
	assert.Equal(t, "20261015T120000Z.csv", gcs.Filename(job.Result))

	data, err := storage.Download(context.Background(), job.Result)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
}

func TestHandle_ExportErrors(t *testing.T) {
	f := newFixture(t)
	storage, err := gcs.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = f.handler(Config{}).Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeExport, AccountID: f.account.ID})
	require.Error(t, err)

	err = f.handler(Config{Storage: storage}).Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeExport, AccountID: f.account.ID, Format: "pdf"})
	require.Error(t, err)

	err = f.handler(Config{Storage: storage}).Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeExport, AccountID: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading account")
}

func TestHandle_MirrorListedTransactions(t *testing.T) {
	f := newFixture(t)
	mirror := &mockMirror{}
	h := f.handler(Config{Mirror: mirror})

	job := &jobs.Job{Type: jobs.JobTypeMirrorBigQuery, TransactionIDs: []string{f.txs[1].ID}}
	require.NoError(t, h.Handle(context.Background(), job))

	require.Len(t, mirror.inserted, 1)
	row := mirror.inserted[0]
	assert.Equal(t, f.txs[1].ID, row.TransactionID)
	assert.Equal(t, "Nubank", row.AccountName.StringVal)
	assert.Equal(t, "BRL", row.Currency)
	assert.Equal(t, testNow, row.MirroredTS)
	assert.Equal(t, "mirrored 1 transactions", job.Result)
}

func TestHandle_MirrorBackfillSkipsMirrored(t *testing.T) {
	f := newFixture(t)
	mirror := &mockMirror{mirrored: []*bq.TransactionRow{{TransactionID: f.txs[0].ID, AccountID: f.account.ID}}}
	h := f.handler(Config{Mirror: mirror})

	require.NoError(t, h.Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeMirrorBigQuery}))

	require.Len(t, mirror.inserted, 1)
	assert.Equal(t, f.txs[1].ID, mirror.inserted[0].TransactionID)
}

func TestHandle_MirrorDryRunAndErrors(t *testing.T) {
	f := newFixture(t)

	mirror := &mockMirror{}
	job := &jobs.Job{Type: jobs.JobTypeMirrorBigQuery, AccountID: f.account.ID, DryRun: true}
	require.NoError(t, f.handler(Config{Mirror: mirror}).Handle(context.Background(), job))
	assert.Empty(t, mirror.inserted)
	assert.Equal(t, "would mirror 2 transactions", job.Result)

	err := f.handler(Config{}).Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeMirrorBigQuery})
	assert.ErrorIs(t, err, ErrMirrorDisabled)

	failing := &mockMirror{err: errors.New("quota exceeded")}
	err = f.handler(Config{Mirror: failing}).Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeMirrorBigQuery})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestHandle_SyncNotion(t *testing.T) {
	f := newFixture(t)
	syncer := &mockSyncer{}
	h := f.handler(Config{Notion: syncer})

	from := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	job := &jobs.Job{Type: jobs.JobTypeSyncNotion, AccountID: f.account.ID, From: &from, DryRun: true}
	require.NoError(t, h.Handle(context.Background(), job))

	assert.Equal(t, f.account.ID, syncer.accountID)
	assert.Equal(t, from, syncer.from)
	assert.True(t, syncer.to.IsZero())
	assert.True(t, syncer.dryRun)
	assert.Equal(t, "created 2, updated 0, archived 1, failed 0", job.Result)

	err := h.Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeSyncNotion})
	require.Error(t, err)

	err = f.handler(Config{}).Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeSyncNotion, AccountID: f.account.ID})
	assert.ErrorIs(t, err, ErrNotionDisabled)
}

func TestHandle_UnknownType(t *testing.T) {
	f := newFixture(t)
	err := f.handler(Config{}).Handle(context.Background(), &jobs.Job{Type: "reindex"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job type")
}
