package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/finchat/internal/app"
	"github.com/dvloznov/finchat/internal/logger"
	"github.com/dvloznov/finchat/internal/notionsync"
)

func main() {
	accountName := flag.String("account", "", "Account name to sync (required)")
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format, exclusive (required)")
	notionToken := flag.String("notion-token", "", "Notion API token (defaults to FINCHAT_NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (defaults to FINCHAT_NOTION_TRANSACTIONS_DB)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, log, err := app.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *notionToken != "" {
		cfg.Notion.Token = *notionToken
	}
	if *notionDBID != "" {
		cfg.Notion.TransactionsDB = *notionDBID
	}

	if *accountName == "" {
		log.Fatal().Msg("Error: --account is required")
	}
	if *startDateStr == "" {
		log.Fatal().Msg("Error: --start-date is required")
	}
	if *endDateStr == "" {
		log.Fatal().Msg("Error: --end-date is required")
	}
	if !cfg.Notion.Enabled() {
		log.Fatal().Msg("Error: a Notion token and database ID are required")
	}

	startDate, err := time.Parse("2006-01-02", *startDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
	}
	endDate, err := time.Parse("2006-01-02", *endDateStr)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
	}
	if !endDate.After(startDate) {
		log.Fatal().
			Time("start_date", startDate).
			Time("end_date", endDate).
			Msg("Error: end-date must be after start-date")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, err := app.OpenStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer st.Close()

	account, err := st.FindAccountByName(ctx, *accountName)
	if err != nil {
		log.Fatal().Err(err).Str("account", *accountName).Msg("Failed to find account")
	}

	log.Info().
		Str("account_id", account.ID).
		Str("start_date", *startDateStr).
		Str("end_date", *endDateStr).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	syncer := notionsync.NewSyncer(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.TransactionsDB, st)
	stats, err := syncer.SyncTransactions(ctx, account.ID, startDate, endDate, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed (of %d)\n",
		stats.Created, stats.Updated, stats.Archived, stats.Failed, stats.Total)
}
