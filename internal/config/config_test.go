package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FINCHAT_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "finchat.db", cfg.Database.Path)
	require.True(t, cfg.Database.AutoMigrate)
	require.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	require.Equal(t, 10*time.Minute, cfg.Chat.SessionTTL)
	require.False(t, cfg.Notion.Enabled())
	require.Empty(t, cfg.Telegram.AllowedChatIDs)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "9090"

[notion]
token = "secret"
transactions_db = "db123"

[chat]
session_ttl = "5m"

[telegram]
allowed_chat_ids = [42, -1001234]
`), 0o600))

	t.Setenv("FINCHAT_CONFIG", path)
	t.Setenv("FINCHAT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 5*time.Minute, cfg.Chat.SessionTTL)
	require.True(t, cfg.Notion.Enabled())
	require.Equal(t, []int64{42, -1001234}, cfg.Telegram.AllowedChatIDs)
}
