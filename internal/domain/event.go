package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BasisPoints is the denominator for vig and reserve threshold values.
const BasisPoints = 10000

// Option count bounds accepted at event acceptance.
const (
	MinOptions = 2
	MaxOptions = 16
)

// EventState is the lifecycle position of a wagering event.
type EventState uint8

const (
	EventPending EventState = iota + 1
	EventOpened
	EventPaused
	EventResolved
	EventRejected
	EventDisqualified
)

var eventStateNames = map[EventState]string{
	EventPending:      "pending",
	EventOpened:       "opened",
	EventPaused:       "paused",
	EventResolved:     "resolved",
	EventRejected:     "rejected",
	EventDisqualified: "disqualified",
}

func (s EventState) String() string {
	if n, ok := eventStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText encodes the state by name.
func (s EventState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *EventState) UnmarshalText(b []byte) error {
	v, err := ParseEventState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseEventState maps a state name back to its value.
func ParseEventState(name string) (EventState, error) {
	for s, n := range eventStateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("domain: unknown event state %q", name)
}

// Live reports whether the event is accepted and not yet terminal.
func (s EventState) Live() bool { return s == EventOpened || s == EventPaused }

// Terminal reports whether no further transition is possible.
func (s EventState) Terminal() bool {
	return s == EventResolved || s == EventRejected || s == EventDisqualified
}

// Event is a proposition accounts can wager on. Pricing fields are fixed at
// acceptance; afterwards only State, Winner and Note change.
type Event struct {
	ID       uint64
	Proposer common.Address
	Metadata string
	State    EventState
	FeePaid  uint256.Int

	Vig       uint16
	EndTime   int64
	MaxPerBet uint256.Int
	Liquidity uint256.Int
	K         uint256.Int
	Options   uint8

	// Stakes holds the cumulative wager total per option.
	Stakes []uint256.Int
	Winner uint8
	Note   string

	ProposedAt time.Time
	UpdatedAt  time.Time
}

// Clone returns a copy that shares no mutable memory with e.
func (e Event) Clone() Event {
	if e.Stakes != nil {
		stakes := make([]uint256.Int, len(e.Stakes))
		copy(stakes, e.Stakes)
		e.Stakes = stakes
	}
	return e
}

// HasWinner reports whether Winner is meaningful.
func (e Event) HasWinner() bool { return e.State == EventResolved }

// TotalStaked sums every option's stake.
func (e Event) TotalStaked() *uint256.Int {
	total := new(uint256.Int)
	for i := range e.Stakes {
		total.Add(total, &e.Stakes[i])
	}
	return total
}

// AcceptParams are the pricing parameters an admin fixes when opening an event.
type AcceptParams struct {
	Vig       uint16       `json:"vig"`
	MaxPerBet *uint256.Int `json:"max_per_bet"`
	Liquidity *uint256.Int `json:"liquidity"`
	EndTime   int64        `json:"end_time"`
	Metadata  string       `json:"metadata"`
	Options   uint8        `json:"options"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	State    *EventState
	Proposer *common.Address
}
