package access

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	punks    = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	otherNFT = common.HexToAddress("0x00000000000000000000000000000000000000e5")
)

type holdings map[common.Address]map[common.Address]uint64

func (h holdings) HoldingsOf(collection, account common.Address) uint64 {
	return h[collection][account]
}

func callFrom(sender common.Address) *domain.Call {
	return domain.NewCall("tx", sender, time.Unix(1_700_000_000, 0))
}

func TestWhoamiResolutionOrder(t *testing.T) {
	h := holdings{punks: {alice: 1}}
	r := NewRegistry(owner, h)
	require.NoError(t, r.AddCollection(callFrom(owner), punks))

	assert.Equal(t, domain.RoleOwner, r.Whoami(owner))
	assert.Equal(t, domain.RoleHolder, r.Whoami(alice))
	assert.Equal(t, domain.RoleUser, r.Whoami(bob))

	require.NoError(t, r.AddProposer(callFrom(owner), alice))
	assert.Equal(t, domain.RoleProposer, r.Whoami(alice))

	require.NoError(t, r.AddAdmin(callFrom(owner), alice))
	assert.Equal(t, domain.RoleAdmin, r.Whoami(alice), "admin dominates proposer")

	require.NoError(t, r.RemoveAdmin(callFrom(owner), alice))
	assert.Equal(t, domain.RoleProposer, r.Whoami(alice))

	require.NoError(t, r.RemoveProposer(callFrom(owner), alice))
	assert.Equal(t, domain.RoleHolder, r.Whoami(alice))

	require.NoError(t, r.RemoveCollection(callFrom(owner), punks))
	assert.Equal(t, domain.RoleUser, r.Whoami(alice))
}

func TestHolderNeedsRecognizedCollection(t *testing.T) {
	h := holdings{otherNFT: {bob: 3}, punks: {bob: 0}}
	r := NewRegistry(owner, h)
	require.NoError(t, r.AddCollection(callFrom(owner), punks))
	assert.Equal(t, domain.RoleUser, r.Whoami(bob))

	require.NoError(t, r.AddCollection(callFrom(owner), otherNFT))
	assert.Equal(t, domain.RoleHolder, r.Whoami(bob))
}

func TestOwnerOnlyMutations(t *testing.T) {
	r := NewRegistry(owner, nil)
	require.NoError(t, r.AddAdmin(callFrom(owner), alice))

	mutations := map[string]func(*domain.Call) error{
		"add admin":          func(c *domain.Call) error { return r.AddAdmin(c, bob) },
		"remove admin":       func(c *domain.Call) error { return r.RemoveAdmin(c, alice) },
		"add proposer":       func(c *domain.Call) error { return r.AddProposer(c, bob) },
		"remove proposer":    func(c *domain.Call) error { return r.RemoveProposer(c, bob) },
		"add collection":     func(c *domain.Call) error { return r.AddCollection(c, punks) },
		"remove collection":  func(c *domain.Call) error { return r.RemoveCollection(c, punks) },
		"transfer ownership": func(c *domain.Call) error { return r.TransferOwnership(c, alice) },
	}
	for name, fn := range mutations {
		t.Run(name, func(t *testing.T) {
			call := callFrom(alice)
			err := fn(call)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			assert.Empty(t, call.Logs())
		})
	}
	assert.Equal(t, owner, r.Owner())
	assert.True(t, r.IsAdmin(alice))
}

func TestAddAndRemoveAreIdempotent(t *testing.T) {
	r := NewRegistry(owner, nil)

	first := callFrom(owner)
	require.NoError(t, r.AddAdmin(first, alice))
	assert.Len(t, first.Logs(), 1)

	again := callFrom(owner)
	require.NoError(t, r.AddAdmin(again, alice))
	assert.Empty(t, again.Logs())
	assert.Len(t, r.Admins(), 1)

	missing := callFrom(owner)
	require.NoError(t, r.RemoveProposer(missing, bob))
	assert.Empty(t, missing.Logs())
}

func TestOwnerIsNeverStoredInSets(t *testing.T) {
	r := NewRegistry(owner, nil)
	require.NoError(t, r.AddAdmin(callFrom(owner), owner))
	require.NoError(t, r.AddProposer(callFrom(owner), owner))
	assert.Empty(t, r.Admins())
	assert.Empty(t, r.Proposers())
}

func TestOwnershipTransfer(t *testing.T) {
	r := NewRegistry(owner, nil)
	require.NoError(t, r.AddAdmin(callFrom(owner), alice))

	call := callFrom(owner)
	require.NoError(t, r.TransferOwnership(call, alice))

	assert.Equal(t, domain.RoleOwner, r.Whoami(alice))
	assert.Equal(t, domain.RoleUser, r.Whoami(owner))
	assert.False(t, r.IsAdmin(alice))
	require.Len(t, call.Logs(), 1)
	assert.Equal(t, domain.LogOwnershipTransferred, call.Logs()[0].Name)
	assert.Equal(t, alice.Hex(), call.Logs()[0].Get("new_owner"))

	assert.ErrorIs(t, r.AddAdmin(callFrom(owner), bob), domain.ErrUnauthorized)
	assert.NoError(t, r.AddAdmin(callFrom(alice), bob))
}

func TestTransferOwnershipRejectsZeroAddress(t *testing.T) {
	r := NewRegistry(owner, nil)
	err := r.TransferOwnership(callFrom(owner), domain.ZeroAddress)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	assert.Equal(t, owner, r.Owner())
}

func TestRequireGuards(t *testing.T) {
	h := holdings{punks: {bob: 1}}
	r := NewRegistry(owner, h)
	require.NoError(t, r.AddCollection(callFrom(owner), punks))
	require.NoError(t, r.AddAdmin(callFrom(owner), alice))
	stranger := common.HexToAddress("0x0000000000000000000000000000000000000fff")

	tests := []struct {
		name    string
		account common.Address
		min     domain.Role
		wantErr bool
	}{
		{"owner passes owner", owner, domain.RoleOwner, false},
		{"admin fails owner", alice, domain.RoleOwner, true},
		{"admin passes admin", alice, domain.RoleAdmin, false},
		{"admin passes proposer", alice, domain.RoleProposer, false},
		{"holder fails proposer", bob, domain.RoleProposer, true},
		{"holder passes holder", bob, domain.RoleHolder, false},
		{"user fails holder", stranger, domain.RoleHolder, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.RequireAtLeast(tt.account, tt.min)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
