package service

import (
	"errors"
	"fmt"
	"time"

	"wildlife-governance/internal/core/domain"
	"wildlife-governance/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// memberClaims is the JWT body. The subject is the member's ledger account,
// the account every governance operation acts as.
type memberClaims struct {
	MemberID string   `json:"mid"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTTokenService issues and checks HS256 member tokens.
type JWTTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
	clock  ports.Clock
}

func NewJWTTokenService(secret string, expiry time.Duration, issuer string, clock ports.Clock) *JWTTokenService {
	return &JWTTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		clock:  clock,
	}
}

func (s *JWTTokenService) Generate(memberID uuid.UUID, principal domain.Principal) (string, time.Time, error) {
	issuedAt := s.clock.Now()
	expiresAt := issuedAt.Add(s.expiry)

	roles := make([]string, len(principal.Roles))
	for i, r := range principal.Roles {
		roles[i] = string(r)
	}

	claims := memberClaims{
		MemberID: memberID.String(),
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principal.Account,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature, issuer and expiry against the service clock.
// Roles the domain no longer knows are dropped rather than rejected.
func (s *JWTTokenService) Validate(tokenString string) (*ports.TokenClaims, error) {
	var claims memberClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	memberID, err := uuid.Parse(claims.MemberID)
	if err != nil {
		return nil, fmt.Errorf("token member id: %w", err)
	}

	var roles []domain.Role
	for _, name := range claims.Roles {
		if role, ok := domain.ParseRole(name); ok {
			roles = append(roles, role)
		}
	}

	return &ports.TokenClaims{
		MemberID: memberID,
		Account:  claims.Subject,
		Roles:    roles,
	}, nil
}
