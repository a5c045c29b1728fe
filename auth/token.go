package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultTokenTTL matches the lifetime issued at registration and login.
const DefaultTokenTTL = time.Hour

// TokenIssuer mints HS256 bearer tokens for locally managed accounts.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer signing with the given shared secret.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	if len(secret) == 0 {
		panic("auth.NewTokenIssuer: secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Mint signs a token whose subject is the user identifier.
func (t *TokenIssuer) Mint(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("mint token: empty user id")
	}
	now := t.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return signed, nil
}
