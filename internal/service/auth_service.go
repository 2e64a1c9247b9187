package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"
	"wildlife-governance/pkg/apperror"

	"github.com/google/uuid"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	memberRepo ports.MemberRepository
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	clock      ports.Clock
	seedRoles  map[string][]domain.Role
}

// NewAuthService creates a new AuthServiceImpl. Accounts listed in operators
// or validators receive that role when they register.
func NewAuthService(
	memberRepo ports.MemberRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	clock ports.Clock,
	operators, validators []string,
) *AuthServiceImpl {
	seed := make(map[string][]domain.Role)
	for _, a := range operators {
		a = domain.NormalizeAccount(a)
		seed[a] = append(seed[a], domain.RoleOperator)
	}
	for _, a := range validators {
		a = domain.NormalizeAccount(a)
		seed[a] = append(seed[a], domain.RoleValidator)
	}
	return &AuthServiceImpl{
		memberRepo: memberRepo,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		clock:      clock,
		seedRoles:  seed,
	}
}

// Register creates a member bound to one ledger account and logs it in.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResult, error) {
	username := strings.TrimSpace(req.Username)
	account := domain.NormalizeAccount(req.Account)
	if username == "" || account == "" {
		return nil, apperror.Validation("username and account are required")
	}

	existing, err := s.memberRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}
	existing, err = s.memberRepo.GetByAccount(ctx, account)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check account: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	// Hash password with Argon2id
	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := s.clock.Now()
	member := &domain.Member{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Account:      account,
		Roles:        append([]domain.Role{domain.RoleMember}, s.seedRoles[account]...),
		Status:       domain.MemberStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.memberRepo.Create(ctx, member); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, apperror.ErrUsernameExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create member: %w", err))
	}

	return s.issue(member)
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*ports.AuthResult, error) {
	member, err := s.memberRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find member: %w", err))
	}
	if member == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, member.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	if !member.IsActive() {
		return nil, apperror.ErrMemberSuspended()
	}

	return s.issue(member)
}

func (s *AuthServiceImpl) issue(member *domain.Member) (*ports.AuthResult, error) {
	token, expiry, err := s.tokenSvc.Generate(member.ID, member.Principal())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return &ports.AuthResult{Member: member, Token: token, ExpiresAt: expiry}, nil
}

var _ ports.AuthService = (*AuthServiceImpl)(nil)
