package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/finchat/internal/api/middleware"
	"github.com/dvloznov/finchat/internal/app"
	"github.com/dvloznov/finchat/internal/config"
	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/export"
	"github.com/dvloznov/finchat/internal/forecast"
	"github.com/dvloznov/finchat/internal/logger"
	"github.com/dvloznov/finchat/internal/parser"
	"github.com/dvloznov/finchat/internal/store/sqlite"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, log, err := app.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	switch os.Args[1] {
	case "parse":
		runParse(cfg, log)
	case "forecast":
		runForecast(cfg, log)
	case "export":
		runExport(cfg, log)
	case "accounts":
		runAccounts(cfg, log)
	case "seed":
		runSeed(cfg, log)
	case "token":
		runToken(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(titleStyle.Render("finchat CLI"))
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse      Parse a free-text message without saving it")
	fmt.Println("  forecast   Show the spending forecast of an account")
	fmt.Println("  export     Write an account's transactions to a CSV or XLSX file")
	fmt.Println("  accounts   List accounts, or add one with -add")
	fmt.Println("  seed       Insert the default categories")
	fmt.Println("  token      Issue an API token signed with the configured secret")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openStore(cfg config.Config, log zerolog.Logger) (context.Context, *sqlite.Store) {
	ctx := logger.WithContext(context.Background(), log)
	st, err := app.OpenStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	return ctx, st
}

func findAccount(ctx context.Context, st *sqlite.Store, name string, log zerolog.Logger) *domain.Account {
	if name == "" {
		log.Fatal().Msg("Error: --account is required")
	}
	account, err := st.FindAccountByName(ctx, name)
	if err != nil {
		log.Fatal().Err(err).Str("account", name).Msg("Failed to find account")
	}
	return account
}

func runParse(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	text := strings.Join(fs.Args(), " ")
	if text == "" {
		log.Fatal().Msg("Usage: cli parse <message>")
	}

	ctx, st := openStore(cfg, log)
	defer st.Close()

	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list accounts")
	}
	categories, err := st.ListCategories(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list categories")
	}

	parsed := parser.Parse(text, parser.Context{Accounts: accounts, Categories: categories})
	fmt.Println(renderParsed(parsed))
}

func runForecast(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	accountName := fs.String("account", "", "Account name")
	fs.Parse(os.Args[2:])

	ctx, st := openStore(cfg, log)
	defer st.Close()

	account := findAccount(ctx, st, *accountName, log)
	res, err := forecast.ForAccount(ctx, st, account.ID, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute forecast")
	}
	fmt.Println(renderForecast(*account, res))
}

func runExport(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	accountName := fs.String("account", "", "Account name")
	formatName := fs.String("format", "csv", "csv or xlsx")
	fromStr := fs.String("from", "", "First day, YYYY-MM-DD (defaults to the start of the month)")
	toStr := fs.String("to", "", "Day after the last, YYYY-MM-DD (defaults to the start of next month)")
	out := fs.String("out", "", "Output file (defaults to <account>-<from>.<ext>)")
	fs.Parse(os.Args[2:])

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid format")
	}

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 1, 0)
	if *fromStr != "" {
		if from, err = time.ParseInLocation("2006-01-02", *fromStr, time.Local); err != nil {
			log.Fatal().Err(err).Msg("Error: invalid from date, expected YYYY-MM-DD")
		}
	}
	if *toStr != "" {
		if to, err = time.ParseInLocation("2006-01-02", *toStr, time.Local); err != nil {
			log.Fatal().Err(err).Msg("Error: invalid to date, expected YYYY-MM-DD")
		}
	}

	ctx, st := openStore(cfg, log)
	defer st.Close()

	account := findAccount(ctx, st, *accountName, log)
	txs, err := st.ListTransactions(ctx, account.ID, from, to)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}
	categories, err := st.ListCategories(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list categories")
	}

	data, err := export.Build(format, *account, categories, txs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build export")
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("%s-%s.%s", strings.ToLower(account.Name), from.Format("2006-01-02"), format.Extension())
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write export")
	}

	fmt.Printf("%s %d transactions to %s\n", okStyle.Render("Exported"), len(txs), path)
}

func runAccounts(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	add := fs.String("add", "", "Name of an account to create")
	currency := fs.String("currency", parser.DefaultCurrency, "Currency of the new account")
	fs.Parse(os.Args[2:])

	ctx, st := openStore(cfg, log)
	defer st.Close()

	if *add != "" {
		account := &domain.Account{Name: *add, Currency: strings.ToUpper(*currency)}
		if err := st.CreateAccount(ctx, account); err != nil {
			log.Fatal().Err(err).Msg("Failed to create account")
		}
		fmt.Printf("%s %s (%s)\n", okStyle.Render("Created"), account.Name, account.ID)
	}

	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list accounts")
	}
	fmt.Println(renderAccounts(accounts))
}

func runSeed(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	cfg.Database.SeedDefault = false
	ctx, st := openStore(cfg, log)
	defer st.Close()

	if err := st.SeedDefaultCategories(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed categories")
	}
	categories, err := st.ListCategories(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list categories")
	}
	fmt.Printf("%s %d categories available\n", okStyle.Render("Seeded"), len(categories))
}

func runToken(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "", "Token subject, e.g. the client name")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	fs.Parse(os.Args[2:])

	if *subject == "" {
		log.Fatal().Msg("Error: --subject is required")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("Error: FINCHAT_AUTH_JWT_SECRET is not set")
	}

	token, err := middleware.NewToken(cfg.Auth.JWTSecret, *subject, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}
	fmt.Println(token)
}
