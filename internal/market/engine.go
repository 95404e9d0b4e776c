// Package market is the wagering engine: the event lifecycle state machine,
// wager bookkeeping and pari-mutuel settlement.
//
// Every mutating method validates all of its preconditions first, then makes
// the fallible ledger transfer, and only then changes engine state, so a
// failed call leaves nothing behind. The engine is not safe for concurrent
// use; the execution host serializes calls.
package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Authorizer is the slice of the access registry the engine consults.
type Authorizer interface {
	RequireOwner(account common.Address) error
	RequireAtLeastAdmin(account common.Address) error
	RequireAtLeastHolder(account common.Address) error
}

// Config fixes the engine's accounts and starting proposal fee.
type Config struct {
	// Address is the engine's own account; it holds escrowed fees and stakes.
	Address     common.Address
	Treasury    common.Address
	ProposalFee *uint256.Int
}

// Engine owns every event and wager.
type Engine struct {
	self     common.Address
	treasury common.Address
	auth     Authorizer
	stake    domain.FungibleLedger
	fees     domain.FungibleLedger

	proposalFee uint256.Int
	events      []*domain.Event
	wagers      map[domain.WagerKey]*domain.Wager
	byAccount   map[common.Address][]domain.WagerKey
	byEvent     map[uint64][]domain.WagerKey
}

// New creates an engine. stake is the wager token, fees the proposal fee token.
func New(cfg Config, auth Authorizer, stake, fees domain.FungibleLedger) *Engine {
	e := &Engine{
		self:      cfg.Address,
		treasury:  cfg.Treasury,
		auth:      auth,
		stake:     stake,
		fees:      fees,
		wagers:    make(map[domain.WagerKey]*domain.Wager),
		byAccount: make(map[common.Address][]domain.WagerKey),
		byEvent:   make(map[uint64][]domain.WagerKey),
	}
	if cfg.ProposalFee != nil {
		e.proposalFee.Set(cfg.ProposalFee)
	}
	return e
}

// Address is the engine's account.
func (e *Engine) Address() common.Address { return e.self }

// ProposalFee is the fee charged by the next Propose.
func (e *Engine) ProposalFee() *uint256.Int { return e.proposalFee.Clone() }

// SetProposalFee changes the proposal fee. Owner only.
func (e *Engine) SetProposalFee(call *domain.Call, fee *uint256.Int) error {
	if err := e.auth.RequireOwner(call.Sender); err != nil {
		return err
	}
	if fee == nil {
		return fmt.Errorf("%w: missing fee", domain.ErrInvalidAmount)
	}
	e.proposalFee.Set(fee)
	call.Emit(domain.LogProposalFeeSet, domain.Amt("fee", fee))
	return nil
}

// EventCount is how many events were ever proposed. Ids run 1..EventCount.
func (e *Engine) EventCount() uint64 { return uint64(len(e.events)) }

// Event returns a snapshot of event id.
func (e *Engine) Event(id uint64) (domain.Event, error) {
	ev, err := e.event(id)
	if err != nil {
		return domain.Event{}, err
	}
	return ev.Clone(), nil
}

// Events lists snapshots matching filter, in id order.
func (e *Engine) Events(filter domain.EventFilter, offset, limit int) []domain.Event {
	var out []domain.Event
	skipped := 0
	for _, ev := range e.events {
		if filter.State != nil && ev.State != *filter.State {
			continue
		}
		if filter.Proposer != nil && ev.Proposer != *filter.Proposer {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, ev.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// OptionTotals returns the cumulative stake per option.
func (e *Engine) OptionTotals(id uint64) ([]uint256.Int, error) {
	ev, err := e.event(id)
	if err != nil {
		return nil, err
	}
	out := make([]uint256.Int, len(ev.Stakes))
	copy(out, ev.Stakes)
	return out, nil
}

// Quote returns the implied price of each option in basis points.
func (e *Engine) Quote(id uint64) ([]uint64, error) {
	ev, err := e.event(id)
	if err != nil {
		return nil, err
	}
	if ev.State == domain.EventPending || ev.State == domain.EventRejected {
		return nil, fmt.Errorf("%w: event %d is %s", domain.ErrInvalidState, id, ev.State)
	}
	return ImpliedPrices(&ev.Liquidity, ev.Stakes), nil
}

// Wager returns a snapshot of one wager.
func (e *Engine) Wager(key domain.WagerKey) (domain.Wager, error) {
	w, ok := e.wagers[key]
	if !ok {
		return domain.Wager{}, fmt.Errorf("%w: wager %d/%s/%d", domain.ErrNotFound, key.EventID, key.Account.Hex(), key.Option)
	}
	return *w, nil
}

// WagersOf lists every wager account ever placed, in placement order.
func (e *Engine) WagersOf(account common.Address) []domain.Wager {
	return e.collect(e.byAccount[account])
}

// WagersOn lists every wager placed on event id, in placement order.
func (e *Engine) WagersOn(id uint64) []domain.Wager {
	return e.collect(e.byEvent[id])
}

func (e *Engine) collect(keys []domain.WagerKey) []domain.Wager {
	out := make([]domain.Wager, 0, len(keys))
	for _, k := range keys {
		out = append(out, *e.wagers[k])
	}
	return out
}

func (e *Engine) event(id uint64) (*domain.Event, error) {
	if id == 0 || id > uint64(len(e.events)) {
		return nil, fmt.Errorf("%w: event %d", domain.ErrNotFound, id)
	}
	return e.events[id-1], nil
}
