package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Projector keeps the relational read model and the event cache in step with
// the state. It is a chain.Sink: for each receipt it re-reads every event
// and wager the logs touched and upserts the current snapshot, so projecting
// the same receipt twice is harmless.
type Projector struct {
	state  StateViewer
	events domain.EventStore
	wagers domain.WagerStore
	cache  domain.EventCache
	logger *slog.Logger
}

// NewProjector creates a Projector. cache may be nil.
func NewProjector(state StateViewer, events domain.EventStore, wagers domain.WagerStore,
	cache domain.EventCache, logger *slog.Logger) *Projector {
	return &Projector{
		state:  state,
		events: events,
		wagers: wagers,
		cache:  cache,
		logger: logger.With(slog.String("component", "projector")),
	}
}

// Name implements chain.Sink.
func (p *Projector) Name() string { return "projector" }

// Handle implements chain.Sink.
func (p *Projector) Handle(ctx context.Context, r domain.Receipt) error {
	eventIDs, wagerKeys := touched(r.Logs)
	if len(eventIDs) == 0 {
		return nil
	}

	events := make([]domain.Event, 0, len(eventIDs))
	wagers := make([]domain.Wager, 0, len(wagerKeys))
	p.state.View(func(s *chain.State) {
		for _, id := range eventIDs {
			if ev, err := s.Market.Event(id); err == nil {
				events = append(events, ev)
			}
		}
		for _, k := range wagerKeys {
			if w, err := s.Market.Wager(k); err == nil {
				wagers = append(wagers, w)
			}
		}
	})
	return p.write(ctx, events, wagers)
}

// Backfill projects every event and wager in the state. Run it after a
// replay so the read model catches up with receipts committed while no
// projector was running.
func (p *Projector) Backfill(ctx context.Context) (int, error) {
	var (
		events []domain.Event
		wagers []domain.Wager
	)
	p.state.View(func(s *chain.State) {
		events = s.Market.Events(domain.EventFilter{}, 0, 0)
		for _, ev := range events {
			wagers = append(wagers, s.Market.WagersOn(ev.ID)...)
		}
	})
	if err := p.write(ctx, events, wagers); err != nil {
		return 0, err
	}
	p.logger.InfoContext(ctx, "read model backfilled",
		slog.Int("events", len(events)),
		slog.Int("wagers", len(wagers)),
	)
	return len(events), nil
}

// write upserts events before wagers; wagers reference their event row.
func (p *Projector) write(ctx context.Context, events []domain.Event, wagers []domain.Wager) error {
	var errs []error
	for _, ev := range events {
		if err := p.events.Upsert(ctx, ev); err != nil {
			errs = append(errs, err)
			continue
		}
		if p.cache != nil {
			if err := p.cache.Set(ctx, ev); err != nil {
				// The cache expires on its own; a stale entry is dropped instead.
				p.logger.WarnContext(ctx, "event cache set failed",
					slog.Uint64("event_id", ev.ID),
					slog.String("error", err.Error()),
				)
				_ = p.cache.Invalidate(ctx, ev.ID)
			}
		}
	}
	for _, w := range wagers {
		if err := p.wagers.Upsert(ctx, w); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("projector: %w", err)
	}
	return nil
}

// touched lists the event ids and wager keys named by logs, first seen
// first.
func touched(logs []domain.Log) ([]uint64, []domain.WagerKey) {
	var (
		ids      []uint64
		keys     []domain.WagerKey
		seenID   = make(map[uint64]bool)
		seenWKey = make(map[domain.WagerKey]bool)
	)
	for _, l := range logs {
		id, ok := l.EventID()
		if !ok {
			continue
		}
		if !seenID[id] {
			seenID[id] = true
			ids = append(ids, id)
		}
		account, option := l.Get("account"), l.Get("option")
		if account == "" || option == "" || !common.IsHexAddress(account) {
			continue
		}
		opt, err := strconv.ParseUint(option, 10, 8)
		if err != nil {
			continue
		}
		k := domain.WagerKey{EventID: id, Account: common.HexToAddress(account), Option: uint8(opt)}
		if !seenWKey[k] {
			seenWKey[k] = true
			keys = append(keys, k)
		}
	}
	return ids, keys
}

var _ chain.Sink = (*Projector)(nil)
