// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the session token payload: the registered claims plus the
// account identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

var timeNow = time.Now

// GenerateToken signs an HS256 token for userID valid for validityDuration.
// The issued-at claim is what the guard compares against the account's
// last password change.
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := timeNow()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns its claims.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(timeNow))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// GetUserIDFromToken is ParseToken for callers that only need the subject.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// IssuedBefore reports whether the token was issued before t. Tokens
// without an iat claim are treated as issued at the epoch.
func (c *Claims) IssuedBefore(t time.Time) bool {
	if c.IssuedAt == nil {
		return true
	}
	return c.IssuedAt.Time.Before(t.Truncate(time.Second))
}
