package market

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Propose opens a new Pending event for a holder or above, escrowing the
// current proposal fee from the proposer. The fee token must be approved to
// the engine beforehand.
func (e *Engine) Propose(call *domain.Call, metadata string) (uint64, error) {
	if err := e.auth.RequireAtLeastHolder(call.Sender); err != nil {
		return 0, err
	}
	fee := e.proposalFee.Clone()
	if !fee.IsZero() {
		if err := e.fees.TransferFrom(e.self, call.Sender, e.self, fee); err != nil {
			return 0, fmt.Errorf("market: escrow proposal fee: %w", err)
		}
	}

	id := uint64(len(e.events)) + 1
	e.events = append(e.events, &domain.Event{
		ID:         id,
		Proposer:   call.Sender,
		Metadata:   metadata,
		State:      domain.EventPending,
		FeePaid:    *fee,
		ProposedAt: call.Time,
		UpdatedAt:  call.Time,
	})
	call.Emit(domain.LogEventProposed,
		domain.U64("event_id", id),
		domain.Addr("proposer", call.Sender),
		domain.Amt("fee", fee),
	)
	return id, nil
}

// Accept prices a Pending event and opens it for wagers. The escrowed fee
// moves to the treasury.
func (e *Engine) Accept(call *domain.Call, id uint64, p domain.AcceptParams) error {
	if err := e.auth.RequireAtLeastAdmin(call.Sender); err != nil {
		return err
	}
	ev, err := e.event(id)
	if err != nil {
		return err
	}
	if ev.State != domain.EventPending {
		return fmt.Errorf("%w: accept event %d in state %s", domain.ErrInvalidState, id, ev.State)
	}
	if p.Options < domain.MinOptions || p.Options > domain.MaxOptions {
		return fmt.Errorf("%w: %d options, want %d..%d", domain.ErrInvalidOption, p.Options, domain.MinOptions, domain.MaxOptions)
	}
	if p.Vig > domain.BasisPoints {
		return fmt.Errorf("%w: vig %d bp above %d", domain.ErrInvalidAmount, p.Vig, domain.BasisPoints)
	}
	if p.MaxPerBet == nil || p.MaxPerBet.IsZero() {
		return fmt.Errorf("%w: max per bet must be positive", domain.ErrInvalidAmount)
	}
	if p.Liquidity == nil || p.Liquidity.IsZero() {
		return fmt.Errorf("%w: liquidity must be positive", domain.ErrInvalidAmount)
	}
	if p.EndTime <= call.Unix() {
		return fmt.Errorf("%w: end time %d not after %d", domain.ErrInvalidState, p.EndTime, call.Unix())
	}
	k, ok := invariantK(p.Liquidity, p.Options)
	if !ok {
		return fmt.Errorf("%w: liquidity^%d overflows", domain.ErrInvalidAmount, p.Options)
	}
	if err := e.releaseFee(ev); err != nil {
		return err
	}

	ev.State = domain.EventOpened
	ev.Vig = p.Vig
	ev.MaxPerBet.Set(p.MaxPerBet)
	ev.Liquidity.Set(p.Liquidity)
	ev.K.Set(k)
	ev.EndTime = p.EndTime
	ev.Options = p.Options
	ev.Stakes = make([]uint256.Int, p.Options)
	if p.Metadata != "" {
		ev.Metadata = p.Metadata
	}
	ev.UpdatedAt = call.Time
	call.Emit(domain.LogEventAccepted,
		domain.U64("event_id", id),
		domain.Addr("admin", call.Sender),
		domain.U64("options", uint64(p.Options)),
		domain.U64("vig", uint64(p.Vig)),
		domain.Amt("max_per_bet", p.MaxPerBet),
		domain.Amt("liquidity", p.Liquidity),
		domain.U64("end_time", uint64(p.EndTime)),
	)
	return nil
}

// Reject closes a Pending event. The fee is kept by the protocol.
func (e *Engine) Reject(call *domain.Call, id uint64, reason string) error {
	if err := e.auth.RequireAtLeastAdmin(call.Sender); err != nil {
		return err
	}
	ev, err := e.event(id)
	if err != nil {
		return err
	}
	if ev.State != domain.EventPending {
		return fmt.Errorf("%w: reject event %d in state %s", domain.ErrInvalidState, id, ev.State)
	}
	if err := e.releaseFee(ev); err != nil {
		return err
	}
	ev.State = domain.EventRejected
	ev.Note = reason
	ev.UpdatedAt = call.Time
	call.Emit(domain.LogEventRejected,
		domain.U64("event_id", id),
		domain.Addr("admin", call.Sender),
		domain.Str("reason", reason),
	)
	return nil
}

// TogglePause flips an accepted event between Opened and Paused and returns
// the new state.
func (e *Engine) TogglePause(call *domain.Call, id uint64, note string) (domain.EventState, error) {
	if err := e.auth.RequireAtLeastAdmin(call.Sender); err != nil {
		return 0, err
	}
	ev, err := e.event(id)
	if err != nil {
		return 0, err
	}
	name := domain.LogEventPaused
	switch ev.State {
	case domain.EventOpened:
		ev.State = domain.EventPaused
	case domain.EventPaused:
		ev.State = domain.EventOpened
		name = domain.LogEventUnpaused
	default:
		return 0, fmt.Errorf("%w: pause event %d in state %s", domain.ErrInvalidState, id, ev.State)
	}
	ev.Note = note
	ev.UpdatedAt = call.Time
	call.Emit(name,
		domain.U64("event_id", id),
		domain.Addr("admin", call.Sender),
		domain.Str("note", note),
	)
	return ev.State, nil
}

// Resolve settles an accepted event on winner. The vig (or, with nobody on
// the winning side, the whole losing pool) moves to the treasury.
func (e *Engine) Resolve(call *domain.Call, id uint64, winner uint8, note string) error {
	if err := e.auth.RequireAtLeastAdmin(call.Sender); err != nil {
		return err
	}
	ev, err := e.event(id)
	if err != nil {
		return err
	}
	if !ev.State.Live() {
		return fmt.Errorf("%w: resolve event %d in state %s", domain.ErrInvalidState, id, ev.State)
	}
	if winner >= ev.Options {
		return fmt.Errorf("%w: winner %d of %d options", domain.ErrInvalidOption, winner, ev.Options)
	}
	winning := ev.Stakes[winner].Clone()
	losing := new(uint256.Int).Sub(ev.TotalStaked(), winning)
	take := VigTake(losing, winning, ev.Vig)
	if !take.IsZero() {
		if err := e.stake.Transfer(e.self, e.treasury, take); err != nil {
			return fmt.Errorf("market: route vig: %w", err)
		}
	}

	ev.State = domain.EventResolved
	ev.Winner = winner
	ev.Note = note
	ev.UpdatedAt = call.Time
	call.Emit(domain.LogEventResolved,
		domain.U64("event_id", id),
		domain.Addr("admin", call.Sender),
		domain.U64("winner", uint64(winner)),
		domain.Amt("winning_total", winning),
		domain.Amt("losing_total", losing),
		domain.Amt("vig_taken", take),
		domain.Str("note", note),
	)
	return nil
}

// Disqualify voids an accepted event; every stake becomes refundable.
func (e *Engine) Disqualify(call *domain.Call, id uint64, note string) error {
	if err := e.auth.RequireAtLeastAdmin(call.Sender); err != nil {
		return err
	}
	ev, err := e.event(id)
	if err != nil {
		return err
	}
	if !ev.State.Live() {
		return fmt.Errorf("%w: disqualify event %d in state %s", domain.ErrInvalidState, id, ev.State)
	}
	ev.State = domain.EventDisqualified
	ev.Note = note
	ev.UpdatedAt = call.Time
	call.Emit(domain.LogEventDisqualified,
		domain.U64("event_id", id),
		domain.Addr("admin", call.Sender),
		domain.Str("note", note),
	)
	return nil
}

func (e *Engine) releaseFee(ev *domain.Event) error {
	if ev.FeePaid.IsZero() {
		return nil
	}
	if err := e.fees.Transfer(e.self, e.treasury, &ev.FeePaid); err != nil {
		return fmt.Errorf("market: route proposal fee: %w", err)
	}
	return nil
}
