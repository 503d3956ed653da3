// Package auth implements local verification of the refresh-style access
// tokens minted by the account service. Tokens are HMAC-SHA256 signed with a
// shared secret; verification is pure computation, no I/O.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the token payload the chat core cares about: the user id and
// the per-session num_token used to detect stale tokens.
type Claims struct {
	UserID   int64 `json:"user_id"`
	NumToken int32 `json:"num_token"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed tokens against the shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier from the JWT secret read at startup.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and verifies a token, returning the embedded (user_id,
// num_token) pair. The pair still has to be checked against the stored session
// record by the caller.
func (v *Verifier) Verify(tokenString string) (int64, int32, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, 0, errors.New("invalid token claims")
	}
	if claims.UserID <= 0 {
		return 0, 0, errors.New("token missing user id")
	}
	return claims.UserID, claims.NumToken, nil
}

// Sign mints a token for the given pair. The account service owns issuance in
// production; this is used by tooling and tests.
func (v *Verifier) Sign(userID int64, numToken int32, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		NumToken: numToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
