package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// WagerKey identifies a wager: one per (event, account, option).
type WagerKey struct {
	EventID uint64
	Account common.Address
	Option  uint8
}

// Wager is an account's cumulative stake on one option of one event.
type Wager struct {
	WagerKey
	Amount   uint256.Int
	Claimed  bool
	Refunded bool
	// Paid is what left the engine for this wager through claim or refund.
	Paid      uint256.Int
	UpdatedAt time.Time
}
