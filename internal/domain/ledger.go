package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ZeroAddress is the burn sink; its balance is excluded from circulation.
var ZeroAddress = common.Address{}

// FungibleLedger is the slice of a fungible token the protocol relies on.
// Transfers fail with ErrTransferFailed and leave balances untouched.
type FungibleLedger interface {
	Address() common.Address
	Symbol() string
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
	BalanceOf(account common.Address) *uint256.Int
	TotalSupply() *uint256.Int
}

// HoldingsReader answers how many tokens of an NFT collection an account owns.
// Unknown collections hold nothing.
type HoldingsReader interface {
	HoldingsOf(collection, owner common.Address) uint64
}
