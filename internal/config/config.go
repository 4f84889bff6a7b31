package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Telegram TelegramConfig
	LLM      LLMConfig
	GCP      GCPConfig
	Notion   NotionConfig
	Auth     AuthConfig
	Log      LogConfig
	Chat     ChatConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path        string
	AutoMigrate bool `mapstructure:"auto_migrate"`
	SeedDefault bool `mapstructure:"seed_defaults"`
}

// TelegramConfig holds bot settings. The bot answers only the chats in
// AllowedChatIDs.
type TelegramConfig struct {
	Token          string
	PollTimeout    int     `mapstructure:"poll_timeout"`
	Debug          bool
	AllowedChatIDs []int64 `mapstructure:"allowed_chat_ids"`
}

// LLMConfig controls the Gemini fallback extractor.
type LLMConfig struct {
	Enabled bool
	APIKey  string `mapstructure:"api_key"`
	Model   string
	Timeout time.Duration
}

// GCPConfig holds BigQuery and Cloud Storage settings.
type GCPConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	Dataset    string
	Bucket     string
	URLExpiry  time.Duration `mapstructure:"url_expiry"`
	ExportDir  string        `mapstructure:"export_dir"`
	MirrorToBQ bool          `mapstructure:"mirror_to_bigquery"`
}

// NotionConfig holds Notion sync settings.
type NotionConfig struct {
	Token          string
	TransactionsDB string `mapstructure:"transactions_db"`
}

// AuthConfig holds API token settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// Enabled reports whether Notion sync has enough settings to run.
func (n NotionConfig) Enabled() bool {
	return n.Token != "" && n.TransactionsDB != ""
}

// Load reads configuration from .env, an optional TOML file and the
// environment. Env var overrides use prefix FINCHAT_.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if cfgPath := os.Getenv("FINCHAT_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "finchat"))
		v.SetConfigName("finchat")
	}

	v.SetEnvPrefix("FINCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("Load: read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("database.path", "finchat.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.seed_defaults", true)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("telegram.allowed_chat_ids", []int64{})
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.timeout", 20*time.Second)
	v.SetDefault("gcp.project_id", "")
	v.SetDefault("gcp.dataset", "finance")
	v.SetDefault("gcp.bucket", "")
	v.SetDefault("gcp.url_expiry", 24*time.Hour)
	v.SetDefault("gcp.export_dir", "exports")
	v.SetDefault("gcp.mirror_to_bigquery", false)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.transactions_db", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("chat.session_ttl", 10*time.Minute)
	v.SetDefault("chat.snapshot_ttl", time.Minute)
}
