package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.revoked[tokenID], s.err
}

func TestGenerateToken_SubjectRoundTrip(t *testing.T) {
	manager := NewTokenManager("secret", time.Hour, nil)

	token, err := manager.GenerateToken(42)
	require.NoError(t, err)

	claims, err := manager.Verify(context.Background(), token)
	require.NoError(t, err)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestGenerateToken_ZeroTTLHasNoExpiry(t *testing.T) {
	manager := NewTokenManager("secret", 0, nil)

	token, err := manager.GenerateToken(7)
	require.NoError(t, err)

	claims, err := manager.ParseToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestVerify_Failures(t *testing.T) {
	manager := NewTokenManager("secret", time.Hour, nil)

	expired := NewTokenManager("secret", time.Hour, nil)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.GenerateToken(1)
	require.NoError(t, err)

	foreignToken, err := NewTokenManager("other-secret", time.Hour, nil).GenerateToken(1)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ID: "id"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ID: "id"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	testCases := []struct {
		name     string
		token    string
		expected error
	}{
		{name: "missing", token: "", expected: ErrMissingToken},
		{name: "malformed", token: "not.a.token", expected: ErrInvalidToken},
		{name: "wrong signature", token: foreignToken, expected: ErrInvalidToken},
		{name: "none algorithm", token: noneToken, expected: ErrInvalidToken},
		{name: "non numeric subject", token: badSubject, expected: ErrInvalidToken},
		{name: "expired", token: expiredToken, expected: ErrExpiredToken},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manager.Verify(context.Background(), tc.token)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestVerify_Revoked(t *testing.T) {
	revocations := &stubRevocations{revoked: map[string]bool{}}
	manager := NewTokenManager("secret", time.Hour, revocations)

	token, err := manager.GenerateToken(3)
	require.NoError(t, err)

	claims, err := manager.Verify(context.Background(), token)
	require.NoError(t, err)

	revocations.revoked[claims.ID] = true
	_, err = manager.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestVerify_RevocationLookupFails(t *testing.T) {
	lookupErr := errors.New("db down")
	manager := NewTokenManager("secret", time.Hour, &stubRevocations{err: lookupErr})

	token, err := manager.GenerateToken(3)
	require.NoError(t, err)

	_, err = manager.Verify(context.Background(), token)
	assert.ErrorIs(t, err, lookupErr)
}
