package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wildlife-governance/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MemberRepo implements ports.MemberRepository.
type MemberRepo struct {
	pool Pool
}

// NewMemberRepo creates a new MemberRepo.
func NewMemberRepo(pool Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

const memberColumns = `id, username, password_hash, account, roles, status, created_at, updated_at`

// Create inserts a new member. Username and account are both unique.
func (r *MemberRepo) Create(ctx context.Context, m *domain.Member) error {
	query := `INSERT INTO members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.Username, m.PasswordHash, m.Account,
		rolesToStrings(m.Roles), string(m.Status),
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert member", err)
	}
	return nil
}

// GetByUsername fetches a member by login name.
func (r *MemberRepo) GetByUsername(ctx context.Context, username string) (*domain.Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE username = $1`, username))
	if err != nil {
		return nil, fmt.Errorf("get member by username: %w", err)
	}
	return m, nil
}

// GetByAccount fetches the member that owns a token account.
func (r *MemberRepo) GetByAccount(ctx context.Context, account string) (*domain.Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE account = $1`, account))
	if err != nil {
		return nil, fmt.Errorf("get member by account: %w", err)
	}
	return m, nil
}

// UpdateRoles replaces the role set of a member.
func (r *MemberRepo) UpdateRoles(ctx context.Context, id uuid.UUID, roles []domain.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE members SET roles = $1, updated_at = $2 WHERE id = $3`,
		rolesToStrings(roles), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update member roles: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update member roles: member %s not found", id)
	}
	return nil
}

func scanMember(row pgx.Row) (*domain.Member, error) {
	var (
		m      domain.Member
		roles  []string
		status string
	)
	err := row.Scan(&m.ID, &m.Username, &m.PasswordHash, &m.Account, &roles, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Status = domain.MemberStatus(status)
	m.Roles = make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		m.Roles = append(m.Roles, domain.Role(r))
	}
	return &m, nil
}

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
