package access

import "github.com/ethereum/go-ethereum/common"

// AddressSet is an unordered set with O(1) add, remove and membership.
// Members live in a dense slice; removal swaps the last member into the gap,
// so iteration order is not stable across removals.
type AddressSet struct {
	index   map[common.Address]int
	members []common.Address
}

// NewAddressSet returns an empty set.
func NewAddressSet() *AddressSet {
	return &AddressSet{index: make(map[common.Address]int)}
}

// Add inserts a and reports whether it was absent.
func (s *AddressSet) Add(a common.Address) bool {
	if _, ok := s.index[a]; ok {
		return false
	}
	s.index[a] = len(s.members)
	s.members = append(s.members, a)
	return true
}

// Remove deletes a and reports whether it was present.
func (s *AddressSet) Remove(a common.Address) bool {
	i, ok := s.index[a]
	if !ok {
		return false
	}
	last := len(s.members) - 1
	if i != last {
		moved := s.members[last]
		s.members[i] = moved
		s.index[moved] = i
	}
	s.members = s.members[:last]
	delete(s.index, a)
	return true
}

// Contains reports membership.
func (s *AddressSet) Contains(a common.Address) bool {
	_, ok := s.index[a]
	return ok
}

// Len is the member count.
func (s *AddressSet) Len() int { return len(s.members) }

// Members returns a copy of the members.
func (s *AddressSet) Members() []common.Address {
	out := make([]common.Address, len(s.members))
	copy(out, s.members)
	return out
}
