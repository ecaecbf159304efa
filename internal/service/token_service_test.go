package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/auth-session-api/internal/models"
)

func newTestTokenService(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     30 * time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "auth-session-api",
	}, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceRejectsBadSecrets(t *testing.T) {
	_, err := NewTokenService(TokenConfig{AccessSecret: "", RefreshSecret: "r"})
	assert.Error(t, err)

	_, err = NewTokenService(TokenConfig{AccessSecret: "same", RefreshSecret: "same"})
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	access, accessExp, err := svc.SignAccess(models.TokenClaims{UserID: "u1"}, svc.AccessTTL())
	require.NoError(t, err)
	refresh, refreshExp, err := svc.SignRefresh(models.TokenClaims{UserID: "u1"}, svc.RefreshTTL())
	require.NoError(t, err)
	assert.True(t, refreshExp.After(accessExp))

	claims, err := svc.VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.TokenKindAccess, claims.Kind)

	claims, err = svc.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.TokenKindRefresh, claims.Kind)
}

func TestTokensAreUniquePerIssue(t *testing.T) {
	svc := newTestTokenService(t)
	first, _, err := svc.SignRefresh(models.TokenClaims{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	second, _, err := svc.SignRefresh(models.TokenClaims{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestTokenCrossKindRejected(t *testing.T) {
	svc := newTestTokenService(t)
	access, _, err := svc.SignAccess(models.TokenClaims{UserID: "u1"}, time.Minute)
	require.NoError(t, err)
	refresh, _, err := svc.SignRefresh(models.TokenClaims{UserID: "u1"}, time.Minute)
	require.NoError(t, err)

	_, err = svc.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = svc.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := newTestTokenService(t, WithClock(clock))

	token, exp, err := svc.SignAccess(models.TokenClaims{UserID: "u1"}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), exp)

	now = now.Add(59 * time.Second)
	_, err = svc.VerifyAccess(token)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = svc.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenExpiryMatchesEncodedExp(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 700*int(time.Millisecond), time.UTC)
	svc := newTestTokenService(t, WithClock(func() time.Time { return now }))

	token, exp, err := svc.SignAccess(models.TokenClaims{UserID: "u1"}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC), exp)

	claims, err := svc.VerifyAccess(token)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.Time.Equal(exp))

	now = exp.Add(-time.Nanosecond)
	_, err = svc.VerifyAccess(token)
	require.NoError(t, err)

	now = exp
	_, err = svc.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenZeroTTLIsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t, WithClock(func() time.Time { return now }))

	token, _, err := svc.SignRefresh(models.TokenClaims{UserID: "u1"}, 0)
	require.NoError(t, err)
	_, err = svc.VerifyRefresh(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	now = now.Add(time.Second)
	_, err = svc.VerifyRefresh(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenTamperingRejected(t *testing.T) {
	svc := newTestTokenService(t)
	token, _, err := svc.SignAccess(models.TokenClaims{UserID: "u1"}, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.VerifyAccess(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.VerifyAccess("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = svc.VerifyAccess("")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenForeignSecretRejected(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService(TokenConfig{AccessSecret: "other-access", RefreshSecret: "other-refresh", Issuer: "auth-session-api"})
	require.NoError(t, err)

	token, _, err := other.SignAccess(models.TokenClaims{UserID: "u1"}, time.Minute)
	require.NoError(t, err)
	_, err = svc.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenUnexpectedAlgorithmRejected(t *testing.T) {
	svc := newTestTokenService(t)
	claims := &models.TokenClaims{
		UserID: "u1",
		Kind:   models.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "auth-session-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
