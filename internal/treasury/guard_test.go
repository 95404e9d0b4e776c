package treasury

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/access"
	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/ledger"
)

var (
	owner        = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	admin        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	holder       = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	treasuryAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func n(v uint64) *uint256.Int { return uint256.NewInt(v) }

func call(sender common.Address) *domain.Call {
	return domain.NewCall("tx", sender, time.Unix(1_700_000_000, 0))
}

type fixture struct {
	reg   *access.Registry
	stake *ledger.Token
	fees  *ledger.Token
	guard *Guard
}

// newFixture sets up the reserve scenario: 100,000 circulating, 10,000 of it
// held by the treasury, threshold 5%.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg:   access.NewRegistry(owner, nil),
		stake: ledger.NewToken(common.HexToAddress("0x10"), "TIQ"),
		fees:  ledger.NewToken(common.HexToAddress("0x11"), "QUSD"),
	}
	g, err := New(treasuryAddr, f.reg, f.stake, f.fees, DefaultThresholdBps)
	require.NoError(t, err)
	f.guard = g
	require.NoError(t, f.reg.AddAdmin(call(owner), admin))
	require.NoError(t, f.stake.Mint(nil, treasuryAddr, n(10_000)))
	require.NoError(t, f.stake.Mint(nil, holder, n(90_000)))
	return f
}

func TestWithdrawReserveScenario(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, uint64(100_000), f.guard.Circulating().Uint64())
	assert.Equal(t, uint64(5_000), f.guard.MinimumReserve().Uint64())

	err := f.guard.Withdraw(call(owner), n(5_500))
	assert.ErrorIs(t, err, domain.ErrBelowReserveThreshold)
	assert.Equal(t, uint64(10_000), f.guard.Fund().Uint64())

	c := call(owner)
	require.NoError(t, f.guard.Withdraw(c, n(4_500)))
	assert.Equal(t, uint64(5_500), f.guard.Fund().Uint64())
	assert.Equal(t, uint64(4_500), f.stake.BalanceOf(owner).Uint64())
	require.Len(t, c.Logs(), 1)
	assert.Equal(t, domain.LogTreasuryWithdrawn, c.Logs()[0].Name)
}

func TestWithdrawBoundary(t *testing.T) {
	tests := []struct {
		amount  uint64
		wantErr bool
	}{
		{4_999, false},
		{5_000, false},
		{5_001, true},
		{10_001, true},
	}
	for _, tt := range tests {
		f := newFixture(t)
		err := f.guard.Withdraw(call(owner), n(tt.amount))
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrBelowReserveThreshold, "amount %d", tt.amount)
		} else {
			assert.NoError(t, err, "amount %d", tt.amount)
		}
	}
}

func TestZeroAddressExcludedFromCirculation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.stake.Mint(nil, domain.ZeroAddress, n(900_000)))
	assert.Equal(t, uint64(1_000_000), f.stake.TotalSupply().Uint64())
	assert.Equal(t, uint64(100_000), f.guard.Circulating().Uint64())

	assert.NoError(t, f.guard.Withdraw(call(owner), n(4_500)))
	assert.ErrorIs(t, f.guard.Withdraw(call(owner), n(1_000)), domain.ErrBelowReserveThreshold)
}

func TestWithdrawOwnerOnly(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.guard.Withdraw(call(admin), n(1)), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.guard.WithdrawFees(call(admin), n(1)), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.guard.SetThreshold(call(admin), 100), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.guard.Withdraw(call(owner), n(0)), domain.ErrInvalidAmount)
}

func TestWithdrawFollowsOwnership(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.TransferOwnership(call(owner), admin))
	assert.ErrorIs(t, f.guard.Withdraw(call(owner), n(1)), domain.ErrUnauthorized)
	require.NoError(t, f.guard.Withdraw(call(admin), n(1_000)))
	assert.Equal(t, uint64(1_000), f.stake.BalanceOf(admin).Uint64())
}

func TestWithdrawFeesIsUnguarded(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fees.Mint(nil, treasuryAddr, n(300)))

	require.NoError(t, f.guard.WithdrawFees(call(owner), n(300)))
	assert.True(t, f.guard.FeeFund().IsZero())
	assert.Equal(t, uint64(300), f.fees.BalanceOf(owner).Uint64())
	assert.ErrorIs(t, f.guard.WithdrawFees(call(owner), n(1)), domain.ErrTransferFailed)
}

func TestSetThreshold(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.guard.SetThreshold(call(owner), 0), domain.ErrInvalidAmount)
	assert.ErrorIs(t, f.guard.SetThreshold(call(owner), 10_001), domain.ErrInvalidAmount)

	require.NoError(t, f.guard.SetThreshold(call(owner), 1_000))
	assert.Equal(t, uint16(1_000), f.guard.Threshold())
	assert.ErrorIs(t, f.guard.Withdraw(call(owner), n(1)), domain.ErrBelowReserveThreshold,
		"ten percent of 100,000 is the whole fund")
}

func TestCollect(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.guard.Collect(call(holder), PoolReserve, holder, n(10)), domain.ErrTransferFailed)

	require.NoError(t, f.stake.Approve(nil, holder, treasuryAddr, n(10)))
	require.NoError(t, f.guard.Collect(call(holder), PoolReserve, holder, n(10)))
	assert.Equal(t, uint64(10_010), f.guard.Fund().Uint64())
}

func TestNewRejectsZeroThreshold(t *testing.T) {
	_, err := New(treasuryAddr, access.NewRegistry(owner, nil), nil, nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}
