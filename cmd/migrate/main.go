package main

import (
	"context"
	"flag"
	"log"

	"github.com/dvloznov/finchat/internal/config"
)

var (
	target        = flag.String("target", "sqlite", "Database to migrate: sqlite or bigquery")
	projectID     = flag.String("project", "", "GCP project ID (bigquery, defaults to FINCHAT_GCP_PROJECT_ID)")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID (defaults to FINCHAT_GCP_DATASET)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to BigQuery migrations directory")
	dbPath        = flag.String("db", "", "SQLite database path (defaults to FINCHAT_DATABASE_PATH)")
	down          = flag.Int("down", 0, "Roll back this many sqlite migrations instead of applying")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	switch *target {
	case "sqlite":
		path := *dbPath
		if path == "" {
			path = cfg.Database.Path
		}
		if err := migrateSQLite(path, *down); err != nil {
			log.Fatalf("SQLite migration failed: %v", err)
		}
	case "bigquery":
		project, dataset := *projectID, *datasetID
		if project == "" {
			project = cfg.GCP.ProjectID
		}
		if dataset == "" {
			dataset = cfg.GCP.Dataset
		}
		if project == "" {
			log.Fatal("Error: -project flag is required. Please specify your GCP project ID.")
		}
		if err := migrateBigQuery(ctx, project, dataset, *migrationsDir, *appliedBy); err != nil {
			log.Fatalf("BigQuery migration failed: %v", err)
		}
	default:
		log.Fatalf("Unknown target %q: expected sqlite or bigquery", *target)
	}
}
