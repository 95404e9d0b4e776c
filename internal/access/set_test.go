package access

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestAddressSetRemoveBySwap(t *testing.T) {
	s := NewAddressSet()
	addrs := []common.Address{
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
		common.HexToAddress("0x03"),
	}
	for _, a := range addrs {
		assert.True(t, s.Add(a))
	}
	assert.False(t, s.Add(addrs[1]))

	assert.True(t, s.Remove(addrs[0]))
	assert.False(t, s.Remove(addrs[0]))
	assert.Equal(t, 2, s.Len())
	assert.ElementsMatch(t, []common.Address{addrs[1], addrs[2]}, s.Members())

	assert.True(t, s.Contains(addrs[2]))
	assert.True(t, s.Remove(addrs[2]))
	assert.True(t, s.Remove(addrs[1]))
	assert.Zero(t, s.Len())
}
