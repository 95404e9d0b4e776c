package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// PlaceWager stakes amount of the wager token on option. The stake is pulled
// from the caller (who must have approved the engine) before it is credited.
// Repeated wagers on the same option accumulate.
func (e *Engine) PlaceWager(call *domain.Call, id uint64, option uint8, amount *uint256.Int) error {
	ev, err := e.event(id)
	if err != nil {
		return err
	}
	if ev.State != domain.EventOpened {
		return fmt.Errorf("%w: wager on event %d in state %s", domain.ErrInvalidState, id, ev.State)
	}
	if amount == nil || amount.IsZero() || amount.Gt(&ev.MaxPerBet) {
		return fmt.Errorf("%w: wager must be in 1..%s", domain.ErrInvalidAmount, ev.MaxPerBet.Dec())
	}
	if option >= ev.Options {
		return fmt.Errorf("%w: option %d of %d", domain.ErrInvalidOption, option, ev.Options)
	}
	if call.Unix() >= ev.EndTime {
		return fmt.Errorf("%w: event %d closed for wagers at %d", domain.ErrInvalidState, id, ev.EndTime)
	}
	pool, overflow := new(uint256.Int).AddOverflow(&ev.Stakes[option], amount)
	if overflow {
		return fmt.Errorf("%w: option %d pool overflows", domain.ErrInvalidAmount, option)
	}
	if err := e.stake.TransferFrom(e.self, call.Sender, e.self, amount); err != nil {
		return fmt.Errorf("market: collect stake: %w", err)
	}

	key := domain.WagerKey{EventID: id, Account: call.Sender, Option: option}
	w, ok := e.wagers[key]
	if !ok {
		w = &domain.Wager{WagerKey: key}
		e.wagers[key] = w
		e.byAccount[call.Sender] = append(e.byAccount[call.Sender], key)
		e.byEvent[id] = append(e.byEvent[id], key)
	}
	w.Amount.Add(&w.Amount, amount)
	w.UpdatedAt = call.Time
	ev.Stakes[option].Set(pool)
	ev.UpdatedAt = call.Time
	call.Emit(domain.LogWagerPlaced,
		domain.U64("event_id", id),
		domain.Addr("account", call.Sender),
		domain.U64("option", uint64(option)),
		domain.Amt("amount", amount),
		domain.Amt("stake", &w.Amount),
	)
	return nil
}

// ClaimWager pays out the caller's winning stake on a Resolved event and
// returns the amount paid.
func (e *Engine) ClaimWager(call *domain.Call, id uint64, option uint8) (*uint256.Int, error) {
	ev, err := e.event(id)
	if err != nil {
		return nil, err
	}
	if ev.State != domain.EventResolved {
		return nil, fmt.Errorf("%w: claim on event %d in state %s", domain.ErrInvalidState, id, ev.State)
	}
	w, err := e.ownWager(call, id, option)
	if err != nil {
		if e.stakedOn(call.Sender, id) {
			return nil, fmt.Errorf("%w: no stake by %s on option %d of event %d", domain.ErrNotAWinner, call.Sender.Hex(), option, id)
		}
		return nil, err
	}
	if option != ev.Winner {
		return nil, fmt.Errorf("%w: option %d lost, winner is %d", domain.ErrNotAWinner, option, ev.Winner)
	}
	if w.Claimed {
		return nil, fmt.Errorf("%w: event %d option %d", domain.ErrAlreadyClaimed, id, option)
	}
	winning := &ev.Stakes[ev.Winner]
	losing := new(uint256.Int).Sub(ev.TotalStaked(), winning)
	payout := Payout(&w.Amount, losing, winning, ev.Vig)
	if err := e.stake.Transfer(e.self, call.Sender, payout); err != nil {
		return nil, fmt.Errorf("market: pay claim: %w", err)
	}

	w.Claimed = true
	w.Paid.Set(payout)
	w.UpdatedAt = call.Time
	call.Emit(domain.LogWagerClaimed,
		domain.U64("event_id", id),
		domain.Addr("account", call.Sender),
		domain.U64("option", uint64(option)),
		domain.Amt("stake", &w.Amount),
		domain.Amt("payout", payout),
	)
	return payout, nil
}

// RefundWager returns the caller's stake on a Disqualified event and returns
// the amount refunded.
func (e *Engine) RefundWager(call *domain.Call, id uint64, option uint8) (*uint256.Int, error) {
	ev, err := e.event(id)
	if err != nil {
		return nil, err
	}
	if ev.State != domain.EventDisqualified {
		return nil, fmt.Errorf("%w: refund on event %d in state %s", domain.ErrInvalidState, id, ev.State)
	}
	w, err := e.ownWager(call, id, option)
	if err != nil {
		return nil, err
	}
	if w.Refunded {
		return nil, fmt.Errorf("%w: event %d option %d", domain.ErrAlreadyRefunded, id, option)
	}
	stake := w.Amount.Clone()
	if err := e.stake.Transfer(e.self, call.Sender, stake); err != nil {
		return nil, fmt.Errorf("market: pay refund: %w", err)
	}

	w.Refunded = true
	w.Paid.Set(stake)
	w.UpdatedAt = call.Time
	call.Emit(domain.LogWagerRefunded,
		domain.U64("event_id", id),
		domain.Addr("account", call.Sender),
		domain.U64("option", uint64(option)),
		domain.Amt("amount", stake),
	)
	return stake, nil
}

// stakedOn reports whether account has a non-zero stake on any option of
// event id.
func (e *Engine) stakedOn(account common.Address, id uint64) bool {
	for _, k := range e.byAccount[account] {
		if k.EventID == id && !e.wagers[k].Amount.IsZero() {
			return true
		}
	}
	return false
}

func (e *Engine) ownWager(call *domain.Call, id uint64, option uint8) (*domain.Wager, error) {
	key := domain.WagerKey{EventID: id, Account: call.Sender, Option: option}
	w, ok := e.wagers[key]
	if !ok || w.Amount.IsZero() {
		return nil, fmt.Errorf("%w: no stake by %s on event %d option %d", domain.ErrNotFound, call.Sender.Hex(), id, option)
	}
	return w, nil
}
