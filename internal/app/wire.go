package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/tiqet/internal/blob/s3"
	"github.com/alanyoungcy/tiqet/internal/cache/redis"
	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/config"
	"github.com/alanyoungcy/tiqet/internal/crypto"
	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/notify"
	"github.com/alanyoungcy/tiqet/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function. The Postgres-backed fields
// are nil with a memory journal; the S3-backed ones outside archive mode.
type Dependencies struct {
	Postgres *postgres.Client
	Journal  domain.Journal
	Events   domain.EventStore
	Wagers   domain.WagerStore
	Audit    domain.AuditStore

	Redis       *redis.Client
	EventCache  domain.EventCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	Locks       domain.LockManager
	Leases      domain.LeaseManager

	S3       *s3blob.Client
	Archiver *s3blob.Archiver

	Signer   *crypto.Signer
	Verifier *crypto.Verifier
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{}

	// --- Node key ---
	signer, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    cfg.Key.PrivateKey,
		EncryptedKeyPath: cfg.Key.EncryptedKeyPath,
		KeyPassword:      cfg.Key.KeyPassword,
		Ephemeral:        cfg.Key.Ephemeral,
	}, int(cfg.Chain.ChainID))
	if err != nil {
		return fail("node key", err)
	}
	deps.Signer = signer
	deps.Verifier = crypto.NewVerifier(int(cfg.Chain.ChainID))
	logger.InfoContext(ctx, "node key loaded", slog.String("address", signer.Address().Hex()))

	// --- PostgreSQL ---
	if cfg.Chain.Journal == "memory" {
		deps.Journal = chain.NewMemoryJournal()
		logger.WarnContext(ctx, "using an in-memory journal; state is lost on exit")
	} else {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.Postgres = pgClient
		deps.Journal = postgres.NewJournalStore(pool)
		deps.Events = postgres.NewEventStore(pool)
		deps.Wagers = postgres.NewWagerStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		Namespace:  cfg.Redis.Namespace,
	})
	if err != nil {
		return fail("redis", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	locks := redis.NewLockManager(redisClient)
	deps.Redis = redisClient
	deps.EventCache = redis.NewEventCache(redisClient, cfg.Redis.CacheTTL.Duration)
	deps.SignalBus = redis.NewSignalBus(redisClient, 0)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.Locks = locks
	deps.Leases = locks

	// --- S3 (archive mode only) ---
	if cfg.Mode == "archive" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.Archive.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		if err := s3Client.Ping(ctx); err != nil {
			return fail("s3", err)
		}
		deps.S3 = s3Client
		deps.Archiver = s3blob.NewArchiver(
			deps.Journal,
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Audit,
			s3blob.ArchiverConfig{BatchSize: cfg.Archive.BatchSize},
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger).WithPacer(deps.RateLimiter)

	return deps, cleanup, nil
}
