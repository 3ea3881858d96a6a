// Package auth issues identity tokens and guards routes with them.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrInvalidToken is wrapped by every verification failure.
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = fmt.Errorf("%w: signature does not validate", ErrInvalidToken)
	ErrExpired          = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrMalformed        = fmt.Errorf("%w: malformed token", ErrInvalidToken)
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = time.Hour

// Claims carried by an identity token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 identity tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("token secret not configured")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for subject. No refresh tokens exist: a client
// re-issues by calling the identity upsert again.
func (t *Tokens) Issue(subject string) (string, error) {
	now := t.now()
	claims := Claims{
		Email: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks raw and returns the subject it was issued for.
func (t *Tokens) Verify(raw string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "", ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpired
	default:
		return "", ErrMalformed
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.Email
	}
	if subject == "" {
		return "", ErrMalformed
	}
	return subject, nil
}
