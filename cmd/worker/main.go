package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finchat/internal/app"
	"github.com/dvloznov/finchat/internal/jobs"
)

func main() {
	interval := flag.Duration("interval", time.Hour, "How often to schedule mirror and Notion reconciliation")
	flag.Parse()

	cfg, log, err := app.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runtime")
	}

	mirror, notion := cfg.GCP.MirrorToBQ, cfg.Notion.Enabled()
	if !mirror && !notion {
		log.Warn().Msg("Neither BigQuery mirroring nor Notion sync is enabled - nothing will be scheduled")
	}

	log.Info().Dur("interval", *interval).Msg("Starting worker service")

	if err := rt.StartWorkers(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	schedule := func() {
		accounts, err := rt.Store.ListAccounts(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list accounts")
			return
		}
		ids := make([]string, 0, len(accounts))
		for _, a := range accounts {
			ids = append(ids, a.ID)
		}
		for _, job := range jobs.Reconcile(ids, time.Now(), mirror, notion) {
			if err := rt.Queue.Publish(ctx, job); err != nil {
				log.Error().Err(err).Str("job_type", string(job.Type)).Msg("Failed to publish job")
				continue
			}
			log.Info().
				Str("job_id", job.JobID).
				Str("job_type", string(job.Type)).
				Str("account_id", job.AccountID).
				Msg("Scheduled job")
		}
	}

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		schedule()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				schedule()
			}
		}
	}()

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := rt.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()
	rt.Close()

	log.Info().Msg("Worker service exited")
}
