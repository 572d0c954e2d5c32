package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/serroba/email-tracker/internal/tracking"
)

var (
	// ErrMissingToken is returned when no bearer token was supplied.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for tokens that fail signature, expiry, issuer or subject checks.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Tokens issues and verifies HS256 access tokens whose subject is the owning user.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokens creates a token manager. An empty secret disables verification:
// every token is then rejected.
func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Issue signs a token for owner. The identity provider owns this in production;
// it is exposed for tooling and tests.
func (t *Tokens) Issue(owner tracking.OwnerID) (string, error) {
	if owner.Anonymous() {
		return "", fmt.Errorf("issue token: %w: empty subject", ErrInvalidToken)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(owner),
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify validates a token and returns its owner.
func (t *Tokens) Verify(token string) (tracking.OwnerID, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	if len(t.secret) == 0 {
		return "", fmt.Errorf("%w: verification disabled", ErrInvalidToken)
	}

	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	return tracking.OwnerID(claims.Subject), nil
}
