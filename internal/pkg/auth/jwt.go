// Package auth provides functionality for generating and verifying JSON Web Tokens (JWT)
// for user authentication. Tokens are HS256-signed with a server secret and carry only the
// subject (user id) and the standard id, issued-at and expiration claims.
package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"coffee_shop/internal/pkg/apperrors"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Verification failures. All of them are unauthorized, each with its own message.
var (
	ErrMissingToken      = apperrors.New(apperrors.ErrUnauthorized, "authorization token is required")
	ErrInvalidAuthHeader = apperrors.New(apperrors.ErrUnauthorized, "invalid auth header")
	ErrInvalidToken      = apperrors.New(apperrors.ErrUnauthorized, "invalid token")
	ErrExpiredToken      = apperrors.New(apperrors.ErrUnauthorized, "token has expired")
	ErrRevokedToken      = apperrors.New(apperrors.ErrUnauthorized, "token has been revoked")
)

// Claims represents the JWT claims of an access token.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the user id stored in the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenManager issues and verifies access tokens.
type TokenManager struct {
	secretKey   []byte
	ttl         time.Duration
	revocations RevocationChecker
	now         func() time.Time
}

// NewTokenManager creates a TokenManager signing with secretKey.
// A ttl of zero issues tokens without an expiration claim.
// revocations may be nil, in which case revocation is not checked.
func NewTokenManager(secretKey string, ttl time.Duration, revocations RevocationChecker) *TokenManager {
	return &TokenManager{
		secretKey:   []byte(secretKey),
		ttl:         ttl,
		revocations: revocations,
		now:         time.Now,
	}
}

// GenerateToken creates a new signed token whose subject is userID.
func (m *TokenManager) GenerateToken(userID int64) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(userID, 10),
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ParseToken validates the signature and the time-based claims of tokenStr.
func (m *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}

	return claims, nil
}

// Verify parses tokenStr and rejects it if its id has been revoked.
func (m *TokenManager) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims, err := m.ParseToken(tokenStr)
	if err != nil {
		return nil, err
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}

	return claims, nil
}
