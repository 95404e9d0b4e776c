package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TIQET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TIQET_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// Genesis mints and collections are file-only.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setInt64(&cfg.Chain.ChainID, "TIQET_CHAIN_ID")
	setInt(&cfg.Chain.SinkQueueSize, "TIQET_CHAIN_SINK_QUEUE_SIZE")
	setInt(&cfg.Chain.ReplayPageSize, "TIQET_CHAIN_REPLAY_PAGE_SIZE")
	setDuration(&cfg.Chain.ProducerLease, "TIQET_CHAIN_PRODUCER_LEASE")
	setStr(&cfg.Chain.Journal, "TIQET_CHAIN_JOURNAL")

	// ── Genesis ──
	setStr(&cfg.Genesis.Owner, "TIQET_GENESIS_OWNER")
	setStr(&cfg.Genesis.ProposalFee, "TIQET_GENESIS_PROPOSAL_FEE")
	setInt(&cfg.Genesis.ThresholdBps, "TIQET_GENESIS_THRESHOLD_BPS")

	// ── Key ──
	setStr(&cfg.Key.PrivateKey, "TIQET_KEY_PRIVATE_KEY")
	setStr(&cfg.Key.EncryptedKeyPath, "TIQET_KEY_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Key.KeyPassword, "TIQET_KEY_PASSWORD")
	setBool(&cfg.Key.Ephemeral, "TIQET_KEY_EPHEMERAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TIQET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TIQET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TIQET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TIQET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TIQET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TIQET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TIQET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TIQET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TIQET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TIQET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TIQET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TIQET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TIQET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TIQET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TIQET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TIQET_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "TIQET_REDIS_CACHE_TTL")
	setStr(&cfg.Redis.Namespace, "TIQET_REDIS_NAMESPACE")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TIQET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TIQET_S3_REGION")
	setStr(&cfg.S3.Bucket, "TIQET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TIQET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TIQET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TIQET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TIQET_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "TIQET_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Prefix, "TIQET_ARCHIVE_PREFIX")
	setInt(&cfg.Archive.BatchSize, "TIQET_ARCHIVE_BATCH_SIZE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TIQET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TIQET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TIQET_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "TIQET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TIQET_SERVER_RATE_WINDOW")
	setDuration(&cfg.Server.MaxClockSkew, "TIQET_SERVER_MAX_CLOCK_SKEW")
	setStr(&cfg.Server.APIKey, "TIQET_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TIQET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TIQET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TIQET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookURL, "TIQET_NOTIFY_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookSecret, "TIQET_NOTIFY_WEBHOOK_SECRET")
	setStringSlice(&cfg.Notify.Events, "TIQET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TIQET_MODE")
	setStr(&cfg.LogLevel, "TIQET_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
