package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env      string `env:"PUBLISHER_ENV,default=development"`
	Port     string `env:"PORT,default=8080"`
	BotToken string `env:"BOT_TOKEN"`

	// ChannelID is either a numeric chat ID or an @username.
	ChannelID string `env:"CHANNEL_ID"`

	AllowedChats IDList `env:"ALLOWED_CHAT_IDS"`
	Admins       IDList `env:"ADMIN_IDS"`

	// TokenSecret signs callback tokens. Falls back to BotToken.
	TokenSecret string `env:"TOKEN_SECRET"`

	Updates  UpdatesConfig
	Pipeline PipelineConfig
	OTA      OTAConfig
	Links    LinksConfig
	OTel     OTelConfig
}

type UpdatesConfig struct {
	Mode          string `env:"UPDATE_MODE,default=polling"` // "polling" or "webhook"
	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	PollTimeout   int    `env:"POLL_TIMEOUT,default=60"`
}

type PipelineConfig struct {
	RedisURL       string `env:"REDIS_URL"`
	RedisStream    string `env:"REDIS_STREAM,default=publisher_updates"`
	RedisGroup     string `env:"REDIS_CONSUMER_GROUP,default=publisher_group"`
	RedisConsumer  string `env:"REDIS_CONSUMER_NAME"`
	RedisDLQStream string `env:"REDIS_DLQ_STREAM,default=publisher_updates_dlq"`
}

type OTAConfig struct {
	BaseURL string `env:"OTA_BASE_URL,default=https://raw.githubusercontent.com/AfterlifeOS/device_afterlife_ota/refs/heads/16"`
}

type LinksConfig struct {
	DownloadBase     string `env:"DOWNLOAD_BASE_URL,default=https://afterlifeos.com/device"`
	SourceChangelogs string `env:"SOURCE_CHANGELOGS_URL,default=https://github.com/AfterlifeOS/Release_changelogs/blob/main/AfterLife-Changelogs.mk"`
	Support          string `env:"SUPPORT_URL,default=https://t.me/AfterLifeOS"`
	Donate           string `env:"DONATE_URL,default=https://t.me/donate_zero/6"`
	UpdatesChannel   string `env:"UPDATES_CHANNEL_URL,default=https://t.me/Afterlife_update"`
}

type OTelConfig struct {
	Endpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Headers        string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName    string `env:"OTEL_SERVICE_NAME,default=afterlife-publisher"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION,default=dev"`
}

const (
	UpdateModePolling = "polling"
	UpdateModeWebhook = "webhook"
)

// Load loads configuration from environment variables.
// In development it first reads private.env, falling back to .env.
// Load does not check credentials; serving commands call Validate.
func Load() (Config, error) {
	if getEnv("PUBLISHER_ENV", "development") == "development" {
		if err := godotenv.Load("private.env"); err != nil {
			_ = godotenv.Load(".env")
		}
	}
	return load(context.Background(), envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &cfg, lookuper); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = cfg.BotToken
	}
	return cfg, nil
}

// Validate reports the first missing credential needed to serve.
func (c Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.ChannelID == "" {
		return fmt.Errorf("CHANNEL_ID is required")
	}
	if c.Pipeline.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	switch c.Updates.Mode {
	case UpdateModePolling:
	case UpdateModeWebhook:
		if c.Updates.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_SECRET is required in webhook mode")
		}
		if !validSecretToken(c.Updates.WebhookSecret) {
			return fmt.Errorf("WEBHOOK_SECRET must be 1-256 characters of A-Z, a-z, 0-9, _ or -")
		}
	default:
		return fmt.Errorf("UPDATE_MODE must be %q or %q, got %q", UpdateModePolling, UpdateModeWebhook, c.Updates.Mode)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c UpdatesConfig) IsWebhook() bool {
	return c.Mode == UpdateModeWebhook
}

// IDList is a comma-separated list of Telegram chat or user IDs.
// Invalid entries are skipped with a warning instead of failing startup.
type IDList []int64

func (l *IDList) EnvDecode(val string) error {
	ids := IDList{}
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			slog.Warn("ignoring invalid id in allow-list", "value", item)
			continue
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

func (l IDList) Contains(id int64) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// validSecretToken matches Telegram's rules for setWebhook secret_token.
func validSecretToken(s string) bool {
	if len(s) == 0 || len(s) > 256 {
		return false
	}
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok {
			return false
		}
	}
	return true
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
