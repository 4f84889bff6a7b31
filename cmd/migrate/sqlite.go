package main

import (
	"fmt"
	"log"

	"github.com/dvloznov/finchat/internal/store/sqlite"
)

// migrateSQLite applies pending migrations, or rolls back the last down.
func migrateSQLite(path string, down int) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	before, _, err := sqlite.Version(db)
	if err != nil {
		return fmt.Errorf("reading version: %w", err)
	}

	if down > 0 {
		log.Printf("Rolling back %d migration(s) on %s", down, path)
		err = sqlite.Rollback(db, down)
	} else {
		err = sqlite.Migrate(db)
	}
	if err != nil {
		return err
	}

	after, dirty, err := sqlite.Version(db)
	if err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", after)
	}

	if before == after {
		log.Printf("No changes. %s is at version %d", path, after)
	} else {
		log.Printf("Migrated %s from version %d to %d", path, before, after)
	}
	return nil
}
