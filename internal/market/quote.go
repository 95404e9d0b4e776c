package market

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// ImpliedPrices returns each option's implied probability in basis points from
// constant-product pools p_i = liquidity + stake_i:
//
//	price_i = Π_{j≠i} p_j / Σ_k Π_{j≠k} p_j
//
// Values are truncated so they may sum to slightly under 10000.
func ImpliedPrices(liquidity *uint256.Int, stakes []uint256.Int) []uint64 {
	n := len(stakes)
	if n == 0 {
		return nil
	}
	pools := make([]*big.Int, n)
	for i := range stakes {
		pools[i] = new(big.Int).Add(liquidity.ToBig(), stakes[i].ToBig())
	}
	others := make([]*big.Int, n)
	den := new(big.Int)
	for i := range pools {
		prod := big.NewInt(1)
		for j, p := range pools {
			if j != i {
				prod.Mul(prod, p)
			}
		}
		others[i] = prod
		den.Add(den, prod)
	}
	out := make([]uint64, n)
	if den.Sign() == 0 {
		return out
	}
	bp := big.NewInt(domain.BasisPoints)
	for i, num := range others {
		q := new(big.Int).Mul(num, bp)
		out[i] = q.Quo(q, den).Uint64()
	}
	return out
}

// invariantK is the product of n pools initialised at liquidity.
func invariantK(liquidity *uint256.Int, n uint8) (*uint256.Int, bool) {
	k := uint256.NewInt(1)
	for i := uint8(0); i < n; i++ {
		if _, overflow := k.MulOverflow(k, liquidity); overflow {
			return nil, false
		}
	}
	return k, true
}
