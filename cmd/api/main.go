package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finchat/internal/api"
	"github.com/dvloznov/finchat/internal/api/handlers"
	"github.com/dvloznov/finchat/internal/app"
	"github.com/dvloznov/finchat/internal/domain"
)

func main() {
	var (
		port        = flag.String("port", "", "HTTP server port (overrides FINCHAT_SERVER_PORT)")
		forecastTTL = flag.Duration("forecast-ttl", 5*time.Minute, "How long a computed forecast is cached")
	)
	flag.Parse()

	cfg, log, err := app.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx := context.Background()

	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runtime")
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := rt.StartWorkers(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	forecasts, err := handlers.NewForecastCache(*forecastTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create forecast cache")
	}
	defer forecasts.Close()

	chatSvc, err := rt.ChatService(ctx, func(tx domain.Transaction) {
		forecasts.Invalidate(tx.AccountID)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chat service")
	}
	defer chatSvc.Close()
	go chatSvc.Sessions().RunSweeper(workerCtx, time.Minute)

	router := api.NewRouter(api.Deps{
		Store:            rt.Store,
		Chat:             chatSvc,
		Forecasts:        forecasts,
		Publisher:        rt.Queue,
		Jobs:             rt.Jobs,
		Storage:          rt.Storage,
		JWTSecret:        cfg.Auth.JWTSecret,
		URLExpiry:        cfg.GCP.URLExpiry,
		MirrorToBigQuery: cfg.GCP.MirrorToBQ,
		SyncNotion:       cfg.Notion.Enabled(),
		Logger:           log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before the store closes.
	if err := rt.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()
	rt.Close()

	log.Info().Msg("Server exited")
}
