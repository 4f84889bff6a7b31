package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dvloznov/finchat/internal/app"
	"github.com/dvloznov/finchat/internal/bot"
)

func main() {
	cfg, log, err := app.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Telegram.Token == "" {
		log.Fatal().Msg("FINCHAT_TELEGRAM_TOKEN is required")
	}
	if len(cfg.Telegram.AllowedChatIDs) == 0 {
		log.Warn().Msg("No allowed chat IDs configured - the bot will refuse every chat")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize runtime")
	}

	if err := rt.StartWorkers(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	chatSvc, err := rt.ChatService(ctx, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chat service")
	}
	defer chatSvc.Close()
	go chatSvc.Sessions().RunSweeper(ctx, time.Minute)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}
	api.Debug = cfg.Telegram.Debug
	log.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Telegram.PollTimeout
	updates := api.GetUpdatesChan(u)

	b := bot.New(api, chatSvc, rt.Store, cfg.Telegram.AllowedChatIDs, log, time.Now)

	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx, updates)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutting down bot...")
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("Bot stopped with error")
		}
	}

	api.StopReceivingUpdates()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := rt.Queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancel()
	rt.Close()

	log.Info().Msg("Bot exited")
}
