package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/server"
	"github.com/alanyoungcy/tiqet/internal/server/handler"
	"github.com/alanyoungcy/tiqet/internal/server/middleware"
	"github.com/alanyoungcy/tiqet/internal/server/ws"
	"github.com/alanyoungcy/tiqet/internal/service"
)

const (
	producerLock = "producer"
	archiveLock  = "archive"
)

// errLeaseLost stops a node that can no longer prove it is the only producer.
var errLeaseLost = errors.New("producer lease lost")

// NodeMode takes the producer lease, rebuilds state from the journal, then
// serves submissions, queries and the live log feed.
func (a *App) NodeMode(ctx context.Context, deps *Dependencies) error {
	ttl := a.cfg.Chain.ProducerLease.Duration
	lease, err := deps.Leases.AcquireLease(ctx, producerLock, ttl)
	if err != nil {
		return fmt.Errorf("node mode: %w", err)
	}
	defer lease.Release()
	a.logger.InfoContext(ctx, "producer lease acquired", slog.Duration("ttl", ttl))

	host, err := a.buildHost(ctx, deps)
	if err != nil {
		return fmt.Errorf("node mode: %w", err)
	}

	if deps.Events != nil {
		projector := service.NewProjector(host, deps.Events, deps.Wagers, deps.EventCache, a.logger)
		if _, err := projector.Backfill(ctx); err != nil {
			return fmt.Errorf("node mode: backfill read model: %w", err)
		}
		host.AddSink(projector)
	}
	if deps.Audit != nil {
		host.AddSink(service.NewAuditSink(deps.Audit))
	}
	host.AddSink(service.NewPublisher(deps.SignalBus))
	host.AddSink(service.NewAlerts(deps.Notifier))

	a.logger.InfoContext(ctx, "starting node mode",
		slog.Int64("seq", host.Seq()),
		slog.String("node", deps.Signer.Address().Hex()),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return host.Run(ctx) })
	g.Go(func() error { return renewLease(ctx, lease, ttl, a.logger) })

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, host)
	}

	return g.Wait()
}

// buildHost creates the genesis state and replays the journal into it.
func (a *App) buildHost(ctx context.Context, deps *Dependencies) (*chain.Host, error) {
	genesis, err := genesisFrom(a.cfg.Genesis)
	if err != nil {
		return nil, err
	}
	state, err := chain.NewState(genesis)
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	host := chain.NewHost(state, deps.Journal, deps.Signer,
		chain.HostConfig{QueueSize: a.cfg.Chain.SinkQueueSize}, a.logger)

	start := time.Now()
	n, err := host.ReplayJournal(ctx, a.cfg.Chain.ReplayPageSize)
	if err != nil {
		return nil, err
	}
	a.logger.InfoContext(ctx, "journal replayed",
		slog.Int("receipts", n),
		slog.Int64("seq", host.Seq()),
		slog.Duration("took", time.Since(start)),
	)
	return host, nil
}

// renewLease keeps the producer lease alive, renewing at a third of its TTL.
func renewLease(ctx context.Context, lease domain.Lease, ttl time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := lease.Renew(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.ErrorContext(ctx, "producer lease renewal failed", slog.String("error", err.Error()))
				return fmt.Errorf("%w: %v", errLeaseLost, err)
			}
		}
	}
}

// ReplayMode rebuilds state from the journal, checks every receipt carries
// the node signature, and exits.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replay mode")

	host, err := a.buildHost(ctx, deps)
	if err != nil {
		return fmt.Errorf("replay mode: %w", err)
	}

	if a.cfg.Key.Ephemeral {
		a.logger.WarnContext(ctx, "ephemeral node key; skipping receipt signature check")
	} else {
		checked, err := verifyJournal(ctx, deps.Journal, deps.Verifier, deps.Signer.Address(), a.cfg.Chain.ReplayPageSize)
		if err != nil {
			return fmt.Errorf("replay mode: %w", err)
		}
		a.logger.InfoContext(ctx, "receipt signatures verified", slog.Int("receipts", checked))
	}

	treasury := service.NewQueryService(host, nil, nil, nil, a.logger).Treasury(ctx)
	a.logger.InfoContext(ctx, "replay complete",
		slog.Int64("seq", host.Seq()),
		slog.String("fund", treasury.Fund),
		slog.String("fee_fund", treasury.FeeFund),
		slog.String("circulating", treasury.Circulating),
	)
	return nil
}

// ArchiveMode uploads whole journal days older than the retention window to
// blob storage and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	unlock, err := deps.Locks.Acquire(ctx, archiveLock, 10*time.Minute)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	defer unlock()

	before := time.Now().UTC().Add(-time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "starting archive mode", slog.Time("before", before))

	n, err := deps.Archiver.ArchiveJournal(ctx, before)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	a.logger.InfoContext(ctx, "archive complete", slog.Int64("receipts", n))
	return nil
}

// startHTTPServer builds the HTTP and WebSocket surface over host and starts
// it inside the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, host *chain.Host) {
	queries := service.NewQueryService(host, deps.Events, deps.Wagers, deps.EventCache, a.logger)
	txs := service.NewTxService(host, deps.Verifier, service.TxConfig{
		MaxClockSkew: a.cfg.Server.MaxClockSkew.Duration,
	}, a.logger)

	pingers := map[string]handler.Pinger{"redis": deps.Redis}
	if deps.Postgres != nil {
		pingers["postgres"] = deps.Postgres
	}

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(host, pingers, a.logger),
		Tx:       handler.NewTxHandler(txs, a.logger),
		Events:   handler.NewEventHandler(queries, a.logger),
		Accounts: handler.NewAccountHandler(queries, a.logger),
	}
	if deps.Audit != nil {
		handlers.Audit = handler.NewAuditHandler(deps.Audit, a.logger)
	}

	hub := ws.NewHub(deps.SignalBus, host, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	var limiter middleware.Limiter
	if a.cfg.Server.RateLimit > 0 {
		limiter = deps.RateLimiter
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, limiter, a.logger)
	g.Go(func() error { return srv.Run(ctx) })
}
