package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type eventJSON struct {
	ID         uint64         `json:"id"`
	Proposer   common.Address `json:"proposer"`
	Metadata   string         `json:"metadata"`
	State      EventState     `json:"state"`
	FeePaid    string         `json:"fee_paid"`
	Vig        uint16         `json:"vig"`
	EndTime    int64          `json:"end_time"`
	MaxPerBet  string         `json:"max_per_bet"`
	Liquidity  string         `json:"liquidity"`
	K          string         `json:"k"`
	Options    uint8          `json:"options"`
	Stakes     []string       `json:"stakes"`
	Winner     *uint8         `json:"winner,omitempty"`
	Note       string         `json:"note,omitempty"`
	ProposedAt time.Time      `json:"proposed_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// MarshalJSON renders amounts as decimal strings.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:         e.ID,
		Proposer:   e.Proposer,
		Metadata:   e.Metadata,
		State:      e.State,
		FeePaid:    e.FeePaid.Dec(),
		Vig:        e.Vig,
		EndTime:    e.EndTime,
		MaxPerBet:  e.MaxPerBet.Dec(),
		Liquidity:  e.Liquidity.Dec(),
		K:          e.K.Dec(),
		Options:    e.Options,
		Stakes:     make([]string, len(e.Stakes)),
		Note:       e.Note,
		ProposedAt: e.ProposedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	for i := range e.Stakes {
		out.Stakes[i] = e.Stakes[i].Dec()
	}
	if e.HasWinner() {
		w := e.Winner
		out.Winner = &w
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	var in eventJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	ev := Event{
		ID:         in.ID,
		Proposer:   in.Proposer,
		Metadata:   in.Metadata,
		State:      in.State,
		Vig:        in.Vig,
		EndTime:    in.EndTime,
		Options:    in.Options,
		Stakes:     make([]uint256.Int, len(in.Stakes)),
		Note:       in.Note,
		ProposedAt: in.ProposedAt,
		UpdatedAt:  in.UpdatedAt,
	}
	if in.Winner != nil {
		ev.Winner = *in.Winner
	}
	fields := []struct {
		dst *uint256.Int
		src string
	}{
		{&ev.FeePaid, in.FeePaid},
		{&ev.MaxPerBet, in.MaxPerBet},
		{&ev.Liquidity, in.Liquidity},
		{&ev.K, in.K},
	}
	for _, f := range fields {
		if err := ParseAmountInto(f.dst, f.src); err != nil {
			return err
		}
	}
	for i, s := range in.Stakes {
		if err := ParseAmountInto(&ev.Stakes[i], s); err != nil {
			return err
		}
	}
	*e = ev
	return nil
}

type wagerJSON struct {
	EventID   uint64         `json:"event_id"`
	Account   common.Address `json:"account"`
	Option    uint8          `json:"option"`
	Amount    string         `json:"amount"`
	Claimed   bool           `json:"claimed"`
	Refunded  bool           `json:"refunded"`
	Paid      string         `json:"paid"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MarshalJSON renders amounts as decimal strings.
func (w Wager) MarshalJSON() ([]byte, error) {
	return json.Marshal(wagerJSON{
		EventID:   w.EventID,
		Account:   w.Account,
		Option:    w.Option,
		Amount:    w.Amount.Dec(),
		Claimed:   w.Claimed,
		Refunded:  w.Refunded,
		Paid:      w.Paid.Dec(),
		UpdatedAt: w.UpdatedAt,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (w *Wager) UnmarshalJSON(b []byte) error {
	var in wagerJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := Wager{
		WagerKey:  WagerKey{EventID: in.EventID, Account: in.Account, Option: in.Option},
		Claimed:   in.Claimed,
		Refunded:  in.Refunded,
		UpdatedAt: in.UpdatedAt,
	}
	if err := ParseAmountInto(&out.Amount, in.Amount); err != nil {
		return err
	}
	if err := ParseAmountInto(&out.Paid, in.Paid); err != nil {
		return err
	}
	*w = out
	return nil
}

// ParseAmount parses a decimal or 0x-prefixed amount. An empty string is zero.
func ParseAmount(s string) (*uint256.Int, error) {
	z := new(uint256.Int)
	if err := ParseAmountInto(z, s); err != nil {
		return nil, err
	}
	return z, nil
}

// ParseAmountInto parses s into dst.
func ParseAmountInto(dst *uint256.Int, s string) error {
	if s == "" {
		dst.Clear()
		return nil
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		// uint256 rejects zero padding, which hex encoders commonly emit.
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" {
			digits = "0"
		}
		if err := dst.SetFromHex("0x" + digits); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
		}
		return nil
	}
	if err := dst.SetFromDecimal(s); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return nil
}
