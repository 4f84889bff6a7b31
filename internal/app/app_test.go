package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finchat/internal/chat"
	"github.com/dvloznov/finchat/internal/config"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/gcs"
	"github.com/dvloznov/finchat/internal/jobs"
	"github.com/dvloznov/finchat/internal/tasks"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		Database: config.DatabaseConfig{
			Path:        filepath.Join(dir, "finchat.db"),
			AutoMigrate: true,
			SeedDefault: true,
		},
		GCP:  config.GCPConfig{ExportDir: filepath.Join(dir, "exports")},
		Chat: config.ChatConfig{SessionTTL: time.Minute, SnapshotTTL: time.Minute},
	}
}

func TestOpenStore_SeedsDefaults(t *testing.T) {
	ctx := context.Background()
	st, err := OpenStore(ctx, testConfig(t).Database)
	require.NoError(t, err)
	defer st.Close()

	categories, err := st.ListCategories(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, categories)
}

func TestOpenStore_WithoutSeeding(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t).Database
	cfg.SeedDefault = false

	st, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()

	categories, err := st.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestNew_LocalExportRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := New(ctx, testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	_, isLocal := rt.Storage.(*gcs.LocalStorage)
	require.True(t, isLocal, "no bucket configured, exports stay on disk")

	account := &domain.Account{Name: "Carteira"}
	require.NoError(t, rt.Store.CreateAccount(ctx, account))

	require.NoError(t, rt.StartWorkers(ctx))

	job := &jobs.Job{Type: jobs.JobTypeExport, AccountID: account.ID, Format: "csv"}
	require.NoError(t, rt.Queue.Publish(ctx, job))

	require.Eventually(t, func() bool {
		got, err := rt.Jobs.GetJob(ctx, job.JobID)
		return err == nil && got.Status == jobs.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	got, err := rt.Jobs.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Result, "file://"), got.Result)

	data, err := rt.Storage.Download(ctx, got.Result)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestNew_OptionalBackendsDisabled(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	err = rt.Tasks.Handle(ctx, &jobs.Job{Type: jobs.JobTypeMirrorBigQuery})
	assert.ErrorIs(t, err, tasks.ErrMirrorDisabled)

	err = rt.Tasks.Handle(ctx, &jobs.Job{Type: jobs.JobTypeSyncNotion, AccountID: "acc"})
	assert.ErrorIs(t, err, tasks.ErrNotionDisabled)
}

func TestRuntime_ChatService(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.Store.CreateAccount(ctx, &domain.Account{Name: "Nubank"}))

	var committed []domain.Transaction
	svc, err := rt.ChatService(ctx, func(tx domain.Transaction) { committed = append(committed, tx) })
	require.NoError(t, err)
	defer svc.Close()

	reply, err := svc.HandleMessage(ctx, "web:1", "gastei 50 no mercado")
	require.NoError(t, err)
	require.Empty(t, reply.Awaiting)

	_, err = svc.HandleChoice(ctx, "web:1", chat.ChoiceConfirm)
	require.NoError(t, err)
	require.Len(t, committed, 1)

	jobsPublished, err := rt.Jobs.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobsPublished, "mirror and Notion are disabled")
}
