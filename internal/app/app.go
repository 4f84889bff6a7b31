// Package app assembles the runtime shared by the finchat binaries.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/finchat/internal/chat"
	"github.com/dvloznov/finchat/internal/config"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/gcs"
	"github.com/dvloznov/finchat/internal/gcsuploader"
	bq "github.com/dvloznov/finchat/internal/infra/bigquery"
	"github.com/dvloznov/finchat/internal/jobs/inmemory"
	"github.com/dvloznov/finchat/internal/llm"
	"github.com/dvloznov/finchat/internal/logger"
	"github.com/dvloznov/finchat/internal/notionsync"
	"github.com/dvloznov/finchat/internal/session"
	"github.com/dvloznov/finchat/internal/store/sqlite"
	"github.com/dvloznov/finchat/internal/tasks"
	"github.com/rs/zerolog"
)

// queueBuffer is the job channel capacity.
const queueBuffer = 100

// Runtime holds the collaborators every binary needs.
type Runtime struct {
	Config  config.Config
	Log     zerolog.Logger
	Store   *sqlite.Store
	Storage gcs.StorageService
	Jobs    *inmemory.Store
	Queue   *inmemory.Queue
	Tasks   *tasks.Handler

	closers []func() error
}

// Load reads the configuration and builds the logger it describes.
func Load() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, logger.New(), err
	}
	return cfg, logger.NewWithConfig(cfg.Log.Level, cfg.Log.Format), nil
}

// OpenStore opens the sqlite database, migrating and seeding it as configured.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*sqlite.Store, error) {
	db, err := sqlite.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("OpenStore: %w", err)
	}
	if cfg.AutoMigrate {
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
	}
	st := sqlite.New(db)
	if cfg.SeedDefault {
		if err := st.SeedDefaultCategories(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
	}
	return st, nil
}

// New builds the runtime. Optional backends (GCS, BigQuery, Notion) are
// wired only when configured; export files fall back to a local directory.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Runtime, error) {
	st, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	r := &Runtime{Config: cfg, Log: log, Store: st}
	r.closers = append(r.closers, st.Close)

	if cfg.GCP.Bucket != "" {
		gcsStorage, err := gcsuploader.NewGCSStorageService(ctx, cfg.GCP.Bucket)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Storage = gcsStorage
		r.closers = append(r.closers, gcsStorage.Close)
	} else {
		local, err := gcs.NewLocalStorage(cfg.GCP.ExportDir)
		if err != nil {
			r.Close()
			return nil, err
		}
		log.Warn().Str("dir", local.Dir).Msg("No GCS bucket configured, exports are kept on local disk")
		r.Storage = local
	}

	taskCfg := tasks.Config{Storage: r.Storage, Logger: log}
	if cfg.GCP.MirrorToBQ {
		mirror, err := bq.NewMirror(ctx, cfg.GCP.ProjectID, cfg.GCP.Dataset)
		if err != nil {
			r.Close()
			return nil, err
		}
		taskCfg.Mirror = mirror
		r.closers = append(r.closers, mirror.Close)
	}
	if cfg.Notion.Enabled() {
		taskCfg.Notion = notionsync.NewSyncer(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.TransactionsDB, st)
	}
	r.Tasks = tasks.NewHandler(st, taskCfg)

	r.Jobs = inmemory.NewStore()
	r.Queue = inmemory.NewQueue(queueBuffer, r.Jobs, inmemory.WithLogger(log))
	return r, nil
}

// StartWorkers starts processing queued jobs in the background.
func (r *Runtime) StartWorkers(ctx context.Context) error {
	r.Log.Info().Msg("Starting job workers")
	return r.Queue.Start(ctx, r.Tasks.Handle)
}

// ChatService builds the chat flow, with the Gemini assistant when enabled.
func (r *Runtime) ChatService(ctx context.Context, onCommit func(domain.Transaction)) (*chat.Service, error) {
	chatCfg := chat.Config{
		Sessions:         session.NewStore(r.Config.Chat.SessionTTL),
		Publisher:        r.Queue,
		MirrorToBigQuery: r.Config.GCP.MirrorToBQ,
		SyncNotion:       r.Config.Notion.Enabled(),
		SnapshotTTL:      r.Config.Chat.SnapshotTTL,
		OnCommit:         onCommit,
		Logger:           r.Log,
	}
	if r.Config.LLM.Enabled {
		assistant, err := llm.NewGeminiAssistant(ctx, r.Config.LLM)
		if err != nil {
			return nil, err
		}
		chatCfg.Assistant = assistant
		r.Log.Info().Str("model", r.Config.LLM.Model).Msg("LLM fallback enabled")
	}
	return chat.NewService(r.Store, chatCfg)
}

// Close stops the queue and releases every backend, newest first.
func (r *Runtime) Close() {
	if r.Queue != nil {
		if err := r.Queue.Close(); err != nil {
			r.Log.Error().Err(err).Msg("Failed to close job queue")
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.Log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}
