package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Chain is what the read side needs from the host.
type Chain interface {
	StateViewer
	Seq() int64
	Nonce(sender common.Address) uint64
	Receipt(ctx context.Context, txID string) (domain.Receipt, error)
}

// AccountView is an account's standing: its role, balances and last nonce.
type AccountView struct {
	Account      common.Address `json:"account"`
	Role         domain.Role    `json:"role"`
	StakeBalance string         `json:"stake_balance"`
	FeeBalance   string         `json:"fee_balance"`
	Nonce        uint64         `json:"nonce"`
}

// RolesView lists every privileged account.
type RolesView struct {
	Owner       common.Address   `json:"owner"`
	Admins      []common.Address `json:"admins"`
	Proposers   []common.Address `json:"proposers"`
	Collections []common.Address `json:"collections"`
}

// TreasuryView is the treasury's balances and its withdrawal floor.
type TreasuryView struct {
	Address        common.Address `json:"address"`
	ThresholdBps   uint16         `json:"threshold_bps"`
	Fund           string         `json:"fund"`
	FeeFund        string         `json:"fee_fund"`
	Circulating    string         `json:"circulating"`
	MinimumReserve string         `json:"minimum_reserve"`
	ProposalFee    string         `json:"proposal_fee"`
}

// QuoteView is an event's implied option prices in basis points.
type QuoteView struct {
	EventID uint64            `json:"event_id"`
	State   domain.EventState `json:"state"`
	Prices  []uint64          `json:"prices_bps"`
	Stakes  []string          `json:"stakes"`
}

// QueryService answers reads. Single records come from the live state, with
// the Redis cache in front of events; lists come from Postgres when it is
// wired and from the state otherwise.
type QueryService struct {
	chain  Chain
	events domain.EventStore
	wagers domain.WagerStore
	cache  domain.EventCache
	logger *slog.Logger
}

// NewQueryService creates a QueryService. events, wagers and cache may be nil.
func NewQueryService(c Chain, events domain.EventStore, wagers domain.WagerStore,
	cache domain.EventCache, logger *slog.Logger) *QueryService {
	return &QueryService{
		chain:  c,
		events: events,
		wagers: wagers,
		cache:  cache,
		logger: logger.With(slog.String("component", "query_service")),
	}
}

// Event returns one event, from the cache when it has it.
func (q *QueryService) Event(ctx context.Context, id uint64) (domain.Event, error) {
	if q.cache != nil {
		if ev, err := q.cache.Get(ctx, id); err == nil {
			return ev, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			q.logger.WarnContext(ctx, "event cache get failed",
				slog.Uint64("event_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	var (
		ev  domain.Event
		err error
	)
	q.chain.View(func(s *chain.State) { ev, err = s.Market.Event(id) })
	if err != nil {
		return domain.Event{}, fmt.Errorf("query: event %d: %w", id, err)
	}
	if q.cache != nil {
		if cacheErr := q.cache.Set(ctx, ev); cacheErr != nil {
			q.logger.WarnContext(ctx, "event cache set failed",
				slog.Uint64("event_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return ev, nil
}

// Events lists events matching filter in id order.
func (q *QueryService) Events(ctx context.Context, filter domain.EventFilter, opts domain.ListOpts) ([]domain.Event, error) {
	if q.events != nil {
		evs, err := q.events.List(ctx, filter, opts)
		if err != nil {
			return nil, fmt.Errorf("query: list events: %w", err)
		}
		return evs, nil
	}
	var evs []domain.Event
	q.chain.View(func(s *chain.State) { evs = s.Market.Events(filter, opts.Offset, opts.Limit) })
	return evs, nil
}

// Quote returns the implied prices of an event's options.
func (q *QueryService) Quote(_ context.Context, id uint64) (QuoteView, error) {
	var (
		view QuoteView
		err  error
	)
	q.chain.View(func(s *chain.State) {
		var ev domain.Event
		if ev, err = s.Market.Event(id); err != nil {
			return
		}
		if view.Prices, err = s.Market.Quote(id); err != nil {
			return
		}
		view.EventID, view.State = id, ev.State
		view.Stakes = make([]string, len(ev.Stakes))
		for i := range ev.Stakes {
			view.Stakes[i] = ev.Stakes[i].Dec()
		}
	})
	if err != nil {
		return QuoteView{}, fmt.Errorf("query: quote %d: %w", id, err)
	}
	return view, nil
}

// Wager returns one wager.
func (q *QueryService) Wager(_ context.Context, key domain.WagerKey) (domain.Wager, error) {
	var (
		w   domain.Wager
		err error
	)
	q.chain.View(func(s *chain.State) { w, err = s.Market.Wager(key) })
	if err != nil {
		return domain.Wager{}, fmt.Errorf("query: %w", err)
	}
	return w, nil
}

// WagersOf lists an account's wagers.
func (q *QueryService) WagersOf(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.Wager, error) {
	if q.wagers != nil {
		ws, err := q.wagers.ListByAccount(ctx, account, opts)
		if err != nil {
			return nil, fmt.Errorf("query: list wagers: %w", err)
		}
		return ws, nil
	}
	var ws []domain.Wager
	q.chain.View(func(s *chain.State) { ws = s.Market.WagersOf(account) })
	return window(ws, opts), nil
}

// Account returns the standing of account.
func (q *QueryService) Account(_ context.Context, account common.Address) AccountView {
	view := AccountView{Account: account, Nonce: q.chain.Nonce(account)}
	q.chain.View(func(s *chain.State) {
		view.Role = s.Access.Whoami(account)
		view.StakeBalance = s.Stake.BalanceOf(account).Dec()
		view.FeeBalance = s.Fees.BalanceOf(account).Dec()
	})
	return view
}

// Roles lists the owner and every admin, proposer and collection.
func (q *QueryService) Roles(_ context.Context) RolesView {
	var view RolesView
	q.chain.View(func(s *chain.State) {
		view = RolesView{
			Owner:       s.Access.Owner(),
			Admins:      s.Access.Admins(),
			Proposers:   s.Access.Proposers(),
			Collections: s.Access.Collections(),
		}
	})
	return view
}

// Treasury returns the treasury balances.
func (q *QueryService) Treasury(_ context.Context) TreasuryView {
	var view TreasuryView
	q.chain.View(func(s *chain.State) {
		view = TreasuryView{
			Address:        s.Treasury.Address(),
			ThresholdBps:   s.Treasury.Threshold(),
			Fund:           s.Treasury.Fund().Dec(),
			FeeFund:        s.Treasury.FeeFund().Dec(),
			Circulating:    s.Treasury.Circulating().Dec(),
			MinimumReserve: s.Treasury.MinimumReserve().Dec(),
			ProposalFee:    s.Market.ProposalFee().Dec(),
		}
	})
	return view
}

// Deployment returns the component addresses genesis created.
func (q *QueryService) Deployment(_ context.Context) chain.Deployment {
	var dep chain.Deployment
	q.chain.View(func(s *chain.State) { dep = s.Deployment })
	return dep
}

// Receipt looks up a journaled receipt.
func (q *QueryService) Receipt(ctx context.Context, txID string) (domain.Receipt, error) {
	r, err := q.chain.Receipt(ctx, txID)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("query: %w", err)
	}
	return r, nil
}

// Seq is the last committed sequence number.
func (q *QueryService) Seq() int64 { return q.chain.Seq() }

func window[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
