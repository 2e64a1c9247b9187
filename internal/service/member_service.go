package service

import (
	"context"
	"fmt"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/rs/zerolog"
)

type memberService struct {
	memberRepo ports.MemberRepository
	log        zerolog.Logger
}

// NewMemberService creates a new member management service.
func NewMemberService(memberRepo ports.MemberRepository, log zerolog.Logger) ports.MemberService {
	return &memberService{memberRepo: memberRepo, log: log}
}

// GrantRole adds role to the member owning account. Operator only. The
// member picks the role up on their next login.
func (s *memberService) GrantRole(ctx context.Context, principal domain.Principal, account string, role domain.Role) (*domain.Member, error) {
	if !principal.Has(domain.RoleOperator) {
		return nil, apperror.ErrUnauthorized("grant roles")
	}
	if role == domain.RoleMinter {
		return nil, apperror.Validation("the minter role is reserved for the exchange")
	}

	member, err := s.memberRepo.GetByAccount(ctx, domain.NormalizeAccount(account))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find member: %w", err))
	}
	if member == nil {
		return nil, apperror.ErrMemberNotFound()
	}

	if !member.GrantRole(role) {
		return member, nil
	}
	if err := s.memberRepo.UpdateRoles(ctx, member.ID, member.Roles); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update roles: %w", err))
	}

	s.log.Info().
		Str("account", member.Account).
		Str("role", string(role)).
		Str("operator", principal.Account).
		Msg("role granted")
	return member, nil
}
