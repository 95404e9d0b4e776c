// Package config defines the top-level configuration for the tiqet node
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TIQET_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Genesis  GenesisConfig  `toml:"genesis"`
	Key      KeyConfig      `toml:"key"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig tunes the execution host.
type ChainConfig struct {
	ChainID        int64    `toml:"chain_id"`
	SinkQueueSize  int      `toml:"sink_queue_size"`
	ReplayPageSize int      `toml:"replay_page_size"`
	ProducerLease  duration `toml:"producer_lease"`
	// Journal selects where receipts are kept: "postgres" or "memory".
	Journal string `toml:"journal"`
}

// GenesisConfig is the initial state every replay starts from. Amounts are
// decimal or 0x-prefixed hex strings in the token's smallest unit.
type GenesisConfig struct {
	Owner        string             `toml:"owner"`
	Time         time.Time          `toml:"time"`
	ProposalFee  string             `toml:"proposal_fee"`
	ThresholdBps int                `toml:"threshold_bps"`
	StakeSymbol  string             `toml:"stake_symbol"`
	FeeSymbol    string             `toml:"fee_symbol"`
	Mints        []MintConfig       `toml:"mints"`
	Collections  []CollectionConfig `toml:"collections"`
}

// MintConfig credits an initial token balance.
type MintConfig struct {
	Token  string `toml:"token"`
	To     string `toml:"to"`
	Amount string `toml:"amount"`
}

// CollectionConfig deploys a recognized NFT collection with initial holders.
type CollectionConfig struct {
	Name    string   `toml:"name"`
	Holders []string `toml:"holders"`
}

// KeyConfig locates the node signing key.
type KeyConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	Ephemeral        bool   `toml:"ephemeral"`
}

// PostgresConfig holds PostgreSQL connection parameters for the journal and
// read models.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"sslmode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
	// Namespace prefixes every key, so nodes of different chains can share
	// one server.
	Namespace string `toml:"namespace"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls journal archiving to S3.
type ArchiveConfig struct {
	RetentionDays int    `toml:"retention_days"`
	Prefix        string `toml:"prefix"`
	BatchSize     int    `toml:"batch_size"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is requests per RateWindow per client IP. Zero disables it.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	// MaxClockSkew bounds how far an envelope timestamp may drift from now.
	MaxClockSkew duration `toml:"max_clock_skew"`
	// APIKey guards the operator endpoints under /api/admin. Empty disables them.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials and the log names that
// trigger a notification.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	WebhookURL        string   `toml:"webhook_url"`
	WebhookSecret     string   `toml:"webhook_secret"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so it can be decoded from a TOML string such as
// "30s" or "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible default values suitable
// for local development.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:        31337,
			SinkQueueSize:  1024,
			ReplayPageSize: 500,
			ProducerLease:  duration{15 * time.Second},
			Journal:        "postgres",
		},
		Genesis: GenesisConfig{
			Time:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ProposalFee:  "0",
			ThresholdBps: 500,
			StakeSymbol:  "TIQ",
			FeeSymbol:    "QUSD",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tiqet",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			CacheTTL:   duration{10 * time.Minute},
			Namespace:  "tiqet",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tiqet",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
			Prefix:        "archive/journal",
			BatchSize:     1000,
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:    120,
			RateWindow:   duration{time.Minute},
			MaxClockSkew: duration{5 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"EventResolved", "TreasuryWithdrawn"},
		},
		Mode:     "node",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"node":    true,
	"replay":  true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validTokens = map[string]bool{
	"stake": true,
	"fees":  true,
}

// Validate checks the configuration for logical errors and returns a
// combined error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("mode must be one of node, replay, archive; got %q", c.Mode))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel))
	}

	// Chain
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be > 0")
	}
	if c.Chain.SinkQueueSize < 1 {
		errs = append(errs, "chain: sink_queue_size must be >= 1")
	}
	if c.Chain.ReplayPageSize < 1 {
		errs = append(errs, "chain: replay_page_size must be >= 1")
	}
	if c.Chain.Journal != "postgres" && c.Chain.Journal != "memory" {
		errs = append(errs, fmt.Sprintf("chain: journal must be postgres or memory; got %q", c.Chain.Journal))
	}
	if c.Chain.Journal == "memory" && c.Mode != "node" {
		errs = append(errs, "chain: a memory journal only supports mode node")
	}

	// Genesis
	if !isAddress(c.Genesis.Owner) {
		errs = append(errs, fmt.Sprintf("genesis: owner must be a non-zero hex address; got %q", c.Genesis.Owner))
	}
	if c.Genesis.ThresholdBps < 1 || c.Genesis.ThresholdBps > 10000 {
		errs = append(errs, fmt.Sprintf("genesis: threshold_bps must be 1-10000, got %d", c.Genesis.ThresholdBps))
	}
	if c.Genesis.StakeSymbol == c.Genesis.FeeSymbol {
		errs = append(errs, "genesis: stake_symbol and fee_symbol must differ")
	}
	for i, m := range c.Genesis.Mints {
		if !validTokens[m.Token] && m.Token != c.Genesis.StakeSymbol && m.Token != c.Genesis.FeeSymbol {
			errs = append(errs, fmt.Sprintf("genesis: mints[%d]: unknown token %q", i, m.Token))
		}
		if !common.IsHexAddress(m.To) {
			errs = append(errs, fmt.Sprintf("genesis: mints[%d]: bad address %q", i, m.To))
		}
		if m.Amount == "" {
			errs = append(errs, fmt.Sprintf("genesis: mints[%d]: amount must not be empty", i))
		}
	}
	for i, col := range c.Genesis.Collections {
		if col.Name == "" {
			errs = append(errs, fmt.Sprintf("genesis: collections[%d]: name must not be empty", i))
		}
		for _, h := range col.Holders {
			if !isAddress(h) {
				errs = append(errs, fmt.Sprintf("genesis: collections[%d]: bad holder %q", i, h))
			}
		}
	}

	// Key
	if c.Key.PrivateKey == "" && c.Key.EncryptedKeyPath == "" && !c.Key.Ephemeral {
		errs = append(errs, "key: one of private_key, encrypted_key_path or ephemeral must be set")
	}
	if c.Key.EncryptedKeyPath != "" && c.Key.KeyPassword == "" {
		errs = append(errs, "key: key_password is required with encrypted_key_path")
	}

	// Postgres holds the journal and read models; a memory journal runs without it.
	if c.Chain.Journal != "memory" {
		if c.Postgres.DSN == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty when dsn is not set")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be <= pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 and archive
	if c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.BatchSize < 1 {
			errs = append(errs, "archive: batch_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
		if c.Server.MaxClockSkew.Duration <= 0 {
			errs = append(errs, "server: max_clock_skew must be > 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.WebhookURL != "" && c.Notify.WebhookSecret == "" {
		errs = append(errs, "notify: webhook_secret is required with webhook_url")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ServerAddr returns the listen address for the HTTP server.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func isAddress(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}
