package domain

import (
	"time"

	"github.com/google/uuid"
)

// MemberStatus represents the state of a member login.
type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "ACTIVE"
	MemberStatusSuspended MemberStatus = "SUSPENDED"
)

// Member is a registered login bound to one ledger account.
type Member struct {
	ID           uuid.UUID    `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"-"` // Never expose
	Account      string       `json:"account"`
	Roles        []Role       `json:"roles"`
	Status       MemberStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsActive returns true if the member may log in.
func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}

// Principal returns the identity the member acts as once authenticated.
func (m *Member) Principal() Principal {
	return Principal{Account: m.Account, Roles: m.Roles}
}

// GrantRole adds role unless already present. It reports whether the set changed.
func (m *Member) GrantRole(role Role) bool {
	for _, r := range m.Roles {
		if r == role {
			return false
		}
	}
	m.Roles = append(m.Roles, role)
	return true
}
