package memory

import (
	"context"
	"fmt"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/google/uuid"
)

type memberRepo struct{ s *Store }

func cloneMember(m *domain.Member) *domain.Member {
	c := *m
	c.Roles = append([]domain.Role(nil), m.Roles...)
	return &c
}

func (r *memberRepo) Create(_ context.Context, m *domain.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.members {
		if existing.Username == m.Username || existing.Account == m.Account {
			return fmt.Errorf("insert member: %w", ports.ErrDuplicateKey)
		}
	}
	r.s.members[m.ID] = cloneMember(m)
	return nil
}

func (r *memberRepo) GetByUsername(_ context.Context, username string) (*domain.Member, error) {
	return r.find(func(m *domain.Member) bool { return m.Username == username }), nil
}

func (r *memberRepo) GetByAccount(_ context.Context, account string) (*domain.Member, error) {
	return r.find(func(m *domain.Member) bool { return m.Account == account }), nil
}

func (r *memberRepo) find(match func(*domain.Member) bool) *domain.Member {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.members {
		if match(m) {
			return cloneMember(m)
		}
	}
	return nil
}

func (r *memberRepo) UpdateRoles(_ context.Context, id uuid.UUID, roles []domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return fmt.Errorf("update member roles: member %s not found", id)
	}
	m.Roles = append([]domain.Role(nil), roles...)
	m.UpdatedAt = time.Now().UTC()
	return nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// AuditEntries returns a copy of the audit trail.
func (s *Store) AuditEntries() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLog(nil), s.audit...)
}
