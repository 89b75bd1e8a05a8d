package models

import "fmt"

// Role is the closed set of per-group membership roles. Writes go through
// ParseRole so unknown strings never reach the database; reads go through
// NormalizeRole so historic junk renders as a plain member.
type Role string

const (
	RoleChef      Role = "chef"
	RoleTreasurer Role = "trésorier"
	RoleMessenger Role = "messager"
	RoleMember    Role = "membre"
)

// Global rank names. Ranks beyond these two exist as seeded reference data but
// carry no privileges.
const (
	RankAdmin  = "admin"
	RankMember = "membre"
)

// ParseRole validates a role string at the input boundary.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleChef, RoleTreasurer, RoleMessenger, RoleMember:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown group role %q", s)
}

// NormalizeRole maps stored role strings onto the closed set, treating any
// unknown value as a plain member.
func NormalizeRole(s string) Role {
	if r, err := ParseRole(s); err == nil {
		return r
	}
	return RoleMember
}
