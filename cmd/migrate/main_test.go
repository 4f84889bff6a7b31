package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finchat/internal/store/sqlite"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0002_create_transactions.sql", true, 2, "create_transactions"},
		{"001_invalid.sql", false, 0, ""},        // wrong number format
		{"0001_test", false, 0, ""},              // missing .sql
		{"0001.sql", false, 0, ""},               // missing name
		{"invalid_0001_test.sql", false, 0, ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_second.sql": "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);",
		"0001_first.sql":  "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);",
		"README.md":       "not a migration",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	migrations, err := readMigrations(dir, "proj", "ds")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.ds.a` (id INT64);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)

	// Same file content, different target: same checksum.
	again, err := readMigrations(dir, "other", "ds2")
	require.NoError(t, err)
	assert.Equal(t, migrations[0].Checksum, again[0].Checksum)
	assert.NotEqual(t, migrations[0].Checksum, migrations[1].Checksum)
}

func TestReadMigrations_RepositoryFiles(t *testing.T) {
	migrations, err := readMigrations(resolveDir("migrations/bigquery"), "proj", "finance")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions must be contiguous")
		assert.NotContains(t, m.SQL, "{{")
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}
	applied := []AppliedMigration{{Version: 1}, {Version: 3}}

	got := pending(migrations, applied)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Version)

	assert.Len(t, pending(migrations, nil), 3)
}

func TestMigrateSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finchat.db")

	require.NoError(t, migrateSQLite(path, 0))

	db, err := sqlite.Open(path)
	require.NoError(t, err)
	version, dirty, err := sqlite.Version(db)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.False(t, dirty)
	assert.Positive(t, version)

	// Re-running is a no-op.
	require.NoError(t, migrateSQLite(path, 0))

	require.NoError(t, migrateSQLite(path, 1))
	db, err = sqlite.Open(path)
	require.NoError(t, err)
	defer db.Close()
	after, _, err := sqlite.Version(db)
	require.NoError(t, err)
	assert.Equal(t, version-1, after)
}
