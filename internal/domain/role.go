package domain

import "fmt"

// Role is the highest access tier an account resolves to. Higher values
// dominate lower ones.
type Role uint8

const (
	RoleUser Role = iota
	RoleHolder
	RoleProposer
	RoleAdmin
	RoleOwner
)

var roleNames = [...]string{
	RoleUser:     "user",
	RoleHolder:   "holder",
	RoleProposer: "proposer",
	RoleAdmin:    "admin",
	RoleOwner:    "owner",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// AtLeast reports whether r is min or above.
func (r Role) AtLeast(min Role) bool { return r >= min }

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ParseRole maps a role name back to its tier.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), nil
		}
	}
	return RoleUser, fmt.Errorf("domain: unknown role %q", s)
}
