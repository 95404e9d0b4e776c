// Package access implements the tiered role model that gates every privileged
// protocol transition: a single owner, an admin set, a proposer set and a set
// of recognized NFT collections whose holders form the lowest privileged tier.
//
// A Registry is not safe for concurrent use; the execution host serializes
// all calls.
package access

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Registry owns the role state.
type Registry struct {
	owner       common.Address
	admins      *AddressSet
	proposers   *AddressSet
	collections *AddressSet
	holdings    domain.HoldingsReader
}

// NewRegistry creates a registry owned by owner. holdings resolves collection
// balances for the holder tier; nil means nobody is a holder.
func NewRegistry(owner common.Address, holdings domain.HoldingsReader) *Registry {
	return &Registry{
		owner:       owner,
		admins:      NewAddressSet(),
		proposers:   NewAddressSet(),
		collections: NewAddressSet(),
		holdings:    holdings,
	}
}

// Owner returns the current owner.
func (r *Registry) Owner() common.Address { return r.owner }

// Admins lists the admin set in no particular order.
func (r *Registry) Admins() []common.Address { return r.admins.Members() }

// Proposers lists the proposer set in no particular order.
func (r *Registry) Proposers() []common.Address { return r.proposers.Members() }

// Collections lists the recognized collections in no particular order.
func (r *Registry) Collections() []common.Address { return r.collections.Members() }

// IsOwner reports whether account is the owner.
func (r *Registry) IsOwner(account common.Address) bool { return account == r.owner }

// IsAdmin reports explicit admin membership.
func (r *Registry) IsAdmin(account common.Address) bool { return r.admins.Contains(account) }

// IsProposer reports explicit proposer membership.
func (r *Registry) IsProposer(account common.Address) bool { return r.proposers.Contains(account) }

// IsHolder reports whether account owns at least one token of any recognized
// collection.
func (r *Registry) IsHolder(account common.Address) bool {
	if r.holdings == nil {
		return false
	}
	for _, c := range r.collections.members {
		if r.holdings.HoldingsOf(c, account) > 0 {
			return true
		}
	}
	return false
}

// Whoami resolves the highest tier of account:
// owner > admin > proposer > holder > user.
func (r *Registry) Whoami(account common.Address) domain.Role {
	switch {
	case r.IsOwner(account):
		return domain.RoleOwner
	case r.IsAdmin(account):
		return domain.RoleAdmin
	case r.IsProposer(account):
		return domain.RoleProposer
	case r.IsHolder(account):
		return domain.RoleHolder
	default:
		return domain.RoleUser
	}
}

// RequireAtLeast fails with ErrUnauthorized unless account resolves to min or
// above.
func (r *Registry) RequireAtLeast(account common.Address, min domain.Role) error {
	if got := r.Whoami(account); !got.AtLeast(min) {
		return fmt.Errorf("%w: %s is %s, needs %s", domain.ErrUnauthorized, account.Hex(), got, min)
	}
	return nil
}

// RequireOwner fails with ErrUnauthorized unless account is the owner.
func (r *Registry) RequireOwner(account common.Address) error {
	return r.RequireAtLeast(account, domain.RoleOwner)
}

// RequireAtLeastAdmin gates admin transitions.
func (r *Registry) RequireAtLeastAdmin(account common.Address) error {
	return r.RequireAtLeast(account, domain.RoleAdmin)
}

// RequireAtLeastProposer gates proposer actions.
func (r *Registry) RequireAtLeastProposer(account common.Address) error {
	return r.RequireAtLeast(account, domain.RoleProposer)
}

// RequireAtLeastHolder gates holder actions.
func (r *Registry) RequireAtLeastHolder(account common.Address) error {
	return r.RequireAtLeast(account, domain.RoleHolder)
}

// TransferOwnership hands the owner role to newOwner. The new owner is dropped
// from the admin and proposer sets so the owner is never stored there; the
// previous owner keeps no role.
func (r *Registry) TransferOwnership(call *domain.Call, newOwner common.Address) error {
	if err := r.RequireOwner(call.Sender); err != nil {
		return err
	}
	if newOwner == domain.ZeroAddress {
		return fmt.Errorf("%w: new owner is the zero address", domain.ErrInvalidAddress)
	}
	prev := r.owner
	r.admins.Remove(newOwner)
	r.proposers.Remove(newOwner)
	r.owner = newOwner
	call.Emit(domain.LogOwnershipTransferred,
		domain.Addr("previous_owner", prev),
		domain.Addr("new_owner", newOwner),
	)
	return nil
}

// AddAdmin grants the admin tier. Adding a member or the owner is a no-op.
func (r *Registry) AddAdmin(call *domain.Call, account common.Address) error {
	return r.add(call, r.admins, account, domain.LogAdminAdded)
}

// RemoveAdmin revokes the admin tier. Removing a non-member is a no-op.
func (r *Registry) RemoveAdmin(call *domain.Call, account common.Address) error {
	return r.remove(call, r.admins, account, domain.LogAdminRemoved)
}

// AddProposer grants the proposer tier.
func (r *Registry) AddProposer(call *domain.Call, account common.Address) error {
	return r.add(call, r.proposers, account, domain.LogProposerAdded)
}

// RemoveProposer revokes the proposer tier.
func (r *Registry) RemoveProposer(call *domain.Call, account common.Address) error {
	return r.remove(call, r.proposers, account, domain.LogProposerRemoved)
}

// AddCollection recognizes an NFT collection for the holder tier.
func (r *Registry) AddCollection(call *domain.Call, collection common.Address) error {
	return r.add(call, r.collections, collection, domain.LogCollectionAdded)
}

// RemoveCollection stops recognizing a collection.
func (r *Registry) RemoveCollection(call *domain.Call, collection common.Address) error {
	return r.remove(call, r.collections, collection, domain.LogCollectionRemoved)
}

func (r *Registry) add(call *domain.Call, set *AddressSet, account common.Address, logName string) error {
	if err := r.RequireOwner(call.Sender); err != nil {
		return err
	}
	if account == domain.ZeroAddress {
		return fmt.Errorf("%w: zero address", domain.ErrInvalidAddress)
	}
	if set != r.collections && account == r.owner {
		return nil
	}
	if set.Add(account) {
		call.Emit(logName, domain.Addr("account", account))
	}
	return nil
}

func (r *Registry) remove(call *domain.Call, set *AddressSet, account common.Address, logName string) error {
	if err := r.RequireOwner(call.Sender); err != nil {
		return err
	}
	if set.Remove(account) {
		call.Emit(logName, domain.Addr("account", account))
	}
	return nil
}
