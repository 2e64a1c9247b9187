package service

import (
	"testing"
	"time"

	"wildlife-governance/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func newTestTokenService(issuer string, clock *fixedClock) *JWTTokenService {
	return NewJWTTokenService(testJWTSecret, time.Hour, issuer, clock)
}

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService("wildlife-governance", clock)
	memberID := uuid.New()
	principal := domain.Principal{Account: "0xabc", Roles: []domain.Role{domain.RoleMember, domain.RoleValidator}}

	tokenStr, expiresAt, err := svc.Generate(memberID, principal)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), expiresAt)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, memberID, claims.MemberID)
	assert.Equal(t, "0xabc", claims.Account)
	assert.Equal(t, principal.Roles, claims.Roles)
	assert.True(t, claims.Principal().Has(domain.RoleValidator))
}

func TestJWTTokenService_ExpiryFollowsClock(t *testing.T) {
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestTokenService("issuer", clock)

	tokenStr, _, err := svc.Generate(uuid.New(), domain.Principal{Account: "0xabc"})
	require.NoError(t, err)

	clock.now = clock.now.Add(59 * time.Minute)
	_, err = svc.Validate(tokenStr)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = svc.Validate(tokenStr)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTTokenService_Rejects(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	issued, _, err := newTestTokenService("issuer-a", clock).Generate(uuid.New(), domain.Principal{Account: "0xabc"})
	require.NoError(t, err)

	otherSecret := NewJWTTokenService("another-secret", time.Hour, "issuer-a", clock)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "0xabc", "mid": uuid.NewString(), "iss": "issuer-a", "exp": clock.now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"mid": uuid.NewString(), "iss": "issuer-a", "exp": clock.now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "0xabc", "mid": uuid.NewString(), "iss": "issuer-a",
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		svc   *JWTTokenService
		token string
	}{
		{"wrong secret", otherSecret, issued},
		{"wrong issuer", newTestTokenService("issuer-b", clock), issued},
		{"alg none", newTestTokenService("issuer-a", clock), noneAlg},
		{"missing subject", newTestTokenService("issuer-a", clock), noSubject},
		{"missing expiry", newTestTokenService("issuer-a", clock), noExpiry},
		{"garbage", newTestTokenService("issuer-a", clock), "not.a.valid.jwt"},
		{"empty", newTestTokenService("issuer-a", clock), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.svc.Validate(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTTokenService_UnknownRolesDropped(t *testing.T) {
	svc := newTestTokenService("issuer", &fixedClock{now: time.Now()})

	tokenStr, _, err := svc.Generate(uuid.New(), domain.Principal{Account: "0xabc", Roles: []domain.Role{"root", domain.RoleOperator}})
	require.NoError(t, err)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{domain.RoleOperator}, claims.Roles)
}
