package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kampai-studio/kampai/internal/pkg/env"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrTokenExpired   = errors.New("session token expired")
	ErrTokenMalformed = errors.New("session token malformed")
)

// SessionClaims is the self-contained identity carried by a session token.
// The plan and admin flag are deliberately NOT part of the claims; the auth
// middleware re-reads the user row so plan changes and account disabling take
// effect on the next request instead of waiting out the token.
type SessionClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenSecret returns the signing secret from configuration.
func TokenSecret() string {
	return env.GetEnv("JWT_SECRET", "kampai-dev-secret-change-me")
}

// TokenTTL returns the configured session validity window.
func TokenTTL() time.Duration {
	if raw := env.GetEnv("SESSION_TOKEN_TTL", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return DefaultTokenTTL
}

// GenerateSessionToken signs a token for the given user, valid for ttl.
func GenerateSessionToken(userID uint, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifySessionToken parses and validates a token, returning its claims.
func VerifySessionToken(tokenString, secret string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
