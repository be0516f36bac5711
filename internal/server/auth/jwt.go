// Package auth holds the server's authentication primitives: signed session
// assertions (JWT, HS256), password hashing and TOTP second factors.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the assertion payload: the standard registered claims plus the
// principal the assertion was issued to.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GenerateToken signs an assertion for userID that expires validity from now.
// It returns the token together with its expiry.
func GenerateToken(userID string, secretKey []byte, validity time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(validity)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expires, nil
}

// ParseToken verifies signature and expiry and returns the claims. Every
// failure wraps common.ErrInvalidAssertion; expiry additionally wraps
// common.ErrTokenExpired.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidAssertion, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidAssertion, err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidAssertion
	}

	return claims, nil
}
