package market

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

var bpDenominator = uint256.NewInt(domain.BasisPoints)

// Distributable is the share of the losing pool paid to winners once the vig
// is taken: losing × (10000 − vig) / 10000, truncated.
func Distributable(losing *uint256.Int, vig uint16) *uint256.Int {
	keep := uint256.NewInt(uint64(domain.BasisPoints - min(vig, domain.BasisPoints)))
	z, _ := new(uint256.Int).MulDivOverflow(losing, keep, bpDenominator)
	return z
}

// VigTake is what the treasury receives out of the losing pool at resolution.
// With nobody on the winning side the whole losing pool is taken.
func VigTake(losing, winning *uint256.Int, vig uint16) *uint256.Int {
	if winning.IsZero() {
		return losing.Clone()
	}
	return new(uint256.Int).Sub(losing, Distributable(losing, vig))
}

// Payout is a winning stake's pari-mutuel return:
// stake + stake × distributable / winning, truncated. A zero losing pool
// returns the principal.
func Payout(stake, losing, winning *uint256.Int, vig uint16) *uint256.Int {
	if winning.IsZero() {
		return stake.Clone()
	}
	share, _ := new(uint256.Int).MulDivOverflow(stake, Distributable(losing, vig), winning)
	return share.Add(share, stake)
}
