package ledger

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	spender = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func call() *domain.Call { return domain.NewCall("tx", alice, time.Unix(0, 0)) }

func n(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestTokenTransfer(t *testing.T) {
	tok := NewToken(common.HexToAddress("0x10"), "TIQ")
	require.NoError(t, tok.Mint(call(), alice, n(100)))

	require.NoError(t, tok.Transfer(alice, bob, n(40)))
	assert.Equal(t, uint64(60), tok.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(40), tok.BalanceOf(bob).Uint64())

	err := tok.Transfer(alice, bob, n(61))
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, uint64(60), tok.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(100), tok.TotalSupply().Uint64())
}

func TestTokenTransferFromNeedsAllowanceAndBalance(t *testing.T) {
	tok := NewToken(common.HexToAddress("0x10"), "TIQ")
	require.NoError(t, tok.Mint(call(), alice, n(50)))

	assert.ErrorIs(t, tok.TransferFrom(spender, alice, bob, n(10)), domain.ErrTransferFailed)

	require.NoError(t, tok.Approve(call(), alice, spender, n(80)))
	assert.ErrorIs(t, tok.TransferFrom(spender, alice, bob, n(60)), domain.ErrTransferFailed,
		"allowance covers it but balance does not")
	assert.Equal(t, uint64(80), tok.Allowance(alice, spender).Uint64())

	require.NoError(t, tok.TransferFrom(spender, alice, bob, n(30)))
	assert.Equal(t, uint64(50), tok.Allowance(alice, spender).Uint64())
	assert.Equal(t, uint64(20), tok.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(30), tok.BalanceOf(bob).Uint64())
}

func TestTokenMintToZeroAndBurn(t *testing.T) {
	tok := NewToken(common.HexToAddress("0x10"), "TIQ")
	c := call()
	require.NoError(t, tok.Mint(c, domain.ZeroAddress, n(900)))
	assert.Equal(t, uint64(900), tok.TotalSupply().Uint64())
	assert.Equal(t, uint64(900), tok.BalanceOf(domain.ZeroAddress).Uint64())
	require.Len(t, c.Logs(), 1)
	assert.Equal(t, domain.LogTransfer, c.Logs()[0].Name)

	require.NoError(t, tok.Mint(call(), alice, n(10)))
	require.NoError(t, tok.Burn(call(), alice, n(4)))
	assert.Equal(t, uint64(906), tok.TotalSupply().Uint64())
	assert.ErrorIs(t, tok.Burn(call(), alice, n(7)), domain.ErrTransferFailed)
}

func TestTokenMintOverflow(t *testing.T) {
	tok := NewToken(common.HexToAddress("0x10"), "TIQ")
	max := new(uint256.Int).SetAllOne()
	require.NoError(t, tok.Mint(call(), alice, max))
	assert.ErrorIs(t, tok.Mint(call(), bob, n(1)), domain.ErrInvalidAmount)
	assert.True(t, tok.BalanceOf(bob).IsZero())
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	tok := NewToken(common.HexToAddress("0x10"), "TIQ")
	require.NoError(t, tok.Mint(call(), alice, n(5)))
	b := tok.BalanceOf(alice)
	b.Add(b, n(100))
	assert.Equal(t, uint64(5), tok.BalanceOf(alice).Uint64())
}
