package domain

import "strings"

// Role is a privilege carried by a principal.
type Role string

const (
	RoleMember    Role = "member"
	RoleValidator Role = "validator"
	RoleOperator  Role = "operator"
	RoleMinter    Role = "minter"
)

// ParseRole returns the role named s, or false when s is not a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleMember:
		return RoleMember, true
	case RoleValidator:
		return RoleValidator, true
	case RoleOperator:
		return RoleOperator, true
	case RoleMinter:
		return RoleMinter, true
	}
	return "", false
}

// Principal is the authenticated caller of a mutating operation.
type Principal struct {
	Account string `json:"account"`
	Roles   []Role `json:"roles"`
}

// Has reports whether the principal carries role.
func (p Principal) Has(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsZero reports whether no caller identity was supplied.
func (p Principal) IsZero() bool {
	return p.Account == ""
}

// SystemPrincipal identifies an internal actor such as the exchange or a sweeper.
func SystemPrincipal(name string, roles ...Role) Principal {
	return Principal{Account: "system:" + name, Roles: roles}
}
