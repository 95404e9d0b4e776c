package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

func TestCollectionHoldings(t *testing.T) {
	addr := common.HexToAddress("0x20")
	col := NewCollection(addr, "Passes")
	dir := NewCollections()
	require.NoError(t, dir.Deploy(col))
	assert.ErrorIs(t, dir.Deploy(NewCollection(addr, "Dup")), domain.ErrAlreadyExists)

	require.NoError(t, col.Mint(call(), alice, 1))
	require.NoError(t, col.Mint(call(), alice, 2))
	assert.ErrorIs(t, col.Mint(call(), bob, 2), domain.ErrAlreadyExists)
	assert.Equal(t, uint64(2), dir.HoldingsOf(addr, alice))

	require.NoError(t, col.Transfer(call(), alice, bob, 1))
	assert.ErrorIs(t, col.Transfer(call(), alice, bob, 1), domain.ErrTransferFailed)
	assert.Equal(t, uint64(1), dir.HoldingsOf(addr, alice))
	assert.Equal(t, uint64(1), dir.HoldingsOf(addr, bob))

	assert.Zero(t, dir.HoldingsOf(common.HexToAddress("0x99"), alice))
	_, err := dir.Get(common.HexToAddress("0x99"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
