package market

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestPayout(t *testing.T) {
	tests := []struct {
		name                  string
		stake, losing, winner uint64
		vig                   uint16
		want                  uint64
	}{
		{"scenario large staker", 20, 10, 25, 100, 27},
		{"scenario small staker", 5, 10, 25, 100, 6},
		{"no vig", 50, 50, 100, 0, 75},
		{"full vig", 50, 50, 100, 10_000, 50},
		{"zero losing pool", 40, 0, 40, 100, 40},
		{"sole winner takes distributable", 10, 1_000, 10, 500, 960},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Payout(uint256.NewInt(tt.stake), uint256.NewInt(tt.losing), uint256.NewInt(tt.winner), tt.vig)
			assert.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestVigTake(t *testing.T) {
	assert.Equal(t, uint64(1), VigTake(uint256.NewInt(10), uint256.NewInt(25), 100).Uint64())
	assert.Equal(t, uint64(10), VigTake(uint256.NewInt(10), uint256.NewInt(0), 100).Uint64())
	assert.Equal(t, uint64(0), VigTake(uint256.NewInt(0), uint256.NewInt(5), 100).Uint64())
}

func TestPayoutsNeverExceedPool(t *testing.T) {
	stakes := []uint64{3, 7, 11, 13, 1}
	var winning uint64
	for _, s := range stakes {
		winning += s
	}
	losing := uint256.NewInt(997)
	var paid uint64
	for _, s := range stakes {
		paid += Payout(uint256.NewInt(s), losing, uint256.NewInt(winning), 250).Uint64()
	}
	take := VigTake(losing, uint256.NewInt(winning), 250).Uint64()
	assert.LessOrEqual(t, paid+take, winning+losing.Uint64())
}

func TestImpliedPrices(t *testing.T) {
	stakes := []uint256.Int{*uint256.NewInt(10), *uint256.NewInt(25)}
	assert.Equal(t, []uint64{5072, 4927}, ImpliedPrices(uint256.NewInt(500), stakes))

	assert.Nil(t, ImpliedPrices(uint256.NewInt(500), nil))
	assert.Equal(t, []uint64{0, 0}, ImpliedPrices(new(uint256.Int), make([]uint256.Int, 2)))
}

func TestImpliedPricesDoNotWrapAtMaxPools(t *testing.T) {
	top := new(uint256.Int).SetAllOne()
	stakes := []uint256.Int{*top.Clone(), {}}
	// Pools are 2·max and max, so option 0 is priced at one third.
	assert.Equal(t, []uint64{3333, 6666}, ImpliedPrices(top, stakes))
}
