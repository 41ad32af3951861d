// Package auth verifies the bearer tokens the API is called with and
// resolves the calling user. Tokens are HS256 JWTs minted at sign-in by the
// account service; this layer only validates and extracts the user ID.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coursehub/internal/common/errors"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Claims is the JWT payload.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Auth issues and verifies API tokens.
type Auth struct {
	secret []byte
	ttl    time.Duration
}

// New creates the verifier. The secret must be at least 32 bytes; anything
// shorter makes HS256 brute-forceable.
func New(secret string, ttl time.Duration) (*Auth, error) {
	if len(secret) < 32 {
		return nil, errors.ConfigError("JWT secret must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{secret: []byte(secret), ttl: ttl}, nil
}

// Issue mints a token for a user.
func (a *Auth) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.ValidationError("user ID is required")
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (a *Auth) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ValidationError("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, errors.ValidationError("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.ValidationError("token carries no user")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stashes the
// user ID in the request context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w)
			return
		}

		claims, err := a.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user ID from the request context, or ""
// when the request did not pass the middleware.
func UserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
