package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"coffee_shop/internal/models"
	"coffee_shop/internal/pkg/apperrors"
)

// contextKey is a custom type used for storing values in a context without risking collisions.
type contextKey string

const (
	// ContextUserID is the key used to store and retrieve the user ID from the request context.
	ContextUserID contextKey = "contextUserID"
	// ContextClaims is the key used to store the verified token claims.
	ContextClaims contextKey = "contextClaims"
)

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenStr string) (*Claims, error)
}

// CheckJWTMiddleware is an HTTP middleware function that validates the Authorization header of incoming requests.
// It checks for the presence of a Bearer token, verifies it and stores the user ID and claims in the request context.
// If validation fails at any point, it returns an error response with the appropriate HTTP status code.
func CheckJWTMiddleware(verifier TokenVerifier) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, ErrMissingToken)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeErrorResponse(w, ErrInvalidAuthHeader)
				return
			}

			claims, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				writeErrorResponse(w, err)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				writeErrorResponse(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextUserID, userID)
			ctx = context.WithValue(ctx, ContextClaims, claims)
			h.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// UserIDFromContext returns the authenticated user id stored by CheckJWTMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(ContextUserID).(int64)
	return userID, ok && userID != 0
}

// ClaimsFromContext returns the verified token claims stored by CheckJWTMiddleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ContextClaims).(*Claims)
	return claims, ok && claims != nil
}

// writeErrorResponse writes a JSON-formatted error response to the HTTP response writer.
// Unauthorized failures keep their message; store failures during revocation lookup do not.
func writeErrorResponse(res http.ResponseWriter, err error) {
	statusCode := http.StatusUnauthorized
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
	case errors.Is(err, apperrors.ErrTransient):
		statusCode = http.StatusServiceUnavailable
	default:
		statusCode = http.StatusInternalServerError
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Error: apperrors.Message(err)})
}
