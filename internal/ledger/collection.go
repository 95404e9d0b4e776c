package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Collection is a non-fungible ledger: each token id has exactly one owner.
type Collection struct {
	address  common.Address
	name     string
	owners   map[uint64]common.Address
	balances map[common.Address]uint64
}

// NewCollection creates an empty collection living at address.
func NewCollection(address common.Address, name string) *Collection {
	return &Collection{
		address:  address,
		name:     name,
		owners:   make(map[uint64]common.Address),
		balances: make(map[common.Address]uint64),
	}
}

// Address is the collection's own account.
func (c *Collection) Address() common.Address { return c.address }

// Name is the display name.
func (c *Collection) Name() string { return c.name }

// BalanceOf counts the tokens owner holds.
func (c *Collection) BalanceOf(owner common.Address) uint64 { return c.balances[owner] }

// OwnerOf returns the holder of tokenID.
func (c *Collection) OwnerOf(tokenID uint64) (common.Address, error) {
	o, ok := c.owners[tokenID]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s token %d", domain.ErrNotFound, c.name, tokenID)
	}
	return o, nil
}

// Mint creates tokenID for to.
func (c *Collection) Mint(call *domain.Call, to common.Address, tokenID uint64) error {
	if _, ok := c.owners[tokenID]; ok {
		return fmt.Errorf("%w: %s token %d", domain.ErrAlreadyExists, c.name, tokenID)
	}
	if to == domain.ZeroAddress {
		return fmt.Errorf("%w: mint to zero address", domain.ErrInvalidAddress)
	}
	c.owners[tokenID] = to
	c.balances[to]++
	c.emit(call, domain.ZeroAddress, to, tokenID)
	return nil
}

// Transfer moves tokenID from its owner to to.
func (c *Collection) Transfer(call *domain.Call, from, to common.Address, tokenID uint64) error {
	owner, err := c.OwnerOf(tokenID)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("%w: %s token %d not owned by %s", domain.ErrTransferFailed, c.name, tokenID, from.Hex())
	}
	if to == domain.ZeroAddress {
		return fmt.Errorf("%w: transfer to zero address", domain.ErrInvalidAddress)
	}
	c.owners[tokenID] = to
	c.balances[from]--
	c.balances[to]++
	c.emit(call, from, to, tokenID)
	return nil
}

func (c *Collection) emit(call *domain.Call, from, to common.Address, tokenID uint64) {
	if call == nil {
		return
	}
	call.Emit(domain.LogTransfer,
		domain.Str("collection", c.name),
		domain.Addr("from", from),
		domain.Addr("to", to),
		domain.U64("token_id", tokenID),
	)
}

// Collections is a directory of deployed collections keyed by address.
type Collections struct {
	byAddr map[common.Address]*Collection
}

// NewCollections returns an empty directory.
func NewCollections() *Collections {
	return &Collections{byAddr: make(map[common.Address]*Collection)}
}

// Deploy registers c; a second collection at the same address is rejected.
func (d *Collections) Deploy(c *Collection) error {
	if _, ok := d.byAddr[c.address]; ok {
		return fmt.Errorf("%w: collection at %s", domain.ErrAlreadyExists, c.address.Hex())
	}
	d.byAddr[c.address] = c
	return nil
}

// Get looks up a collection.
func (d *Collections) Get(addr common.Address) (*Collection, error) {
	c, ok := d.byAddr[addr]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, addr.Hex())
	}
	return c, nil
}

// HoldingsOf implements domain.HoldingsReader. Unknown collections hold
// nothing.
func (d *Collections) HoldingsOf(collection, owner common.Address) uint64 {
	c, ok := d.byAddr[collection]
	if !ok {
		return 0
	}
	return c.BalanceOf(owner)
}
