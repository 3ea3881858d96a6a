package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func newTestTokens(t *testing.T) *Tokens {
	t.Helper()
	tok, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tok
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	tok := newTestTokens(t)
	raw, err := tok.Issue("reader@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	subject, err := tok.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "reader@example.com" {
		t.Fatalf("subject = %q", subject)
	}
}

func TestVerifyExpired(t *testing.T) {
	tok := newTestTokens(t)
	tok.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, err := tok.Issue("reader@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = tok.Verify(raw)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ErrExpired must wrap ErrInvalidToken")
	}
}

func TestVerifyTampered(t *testing.T) {
	tok := newTestTokens(t)
	raw, err := tok.Issue("reader@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(raw, ".")
	other, _ := tok.Issue("owner@example.com")
	parts[1] = strings.Split(other, ".")[1]
	forged := strings.Join(parts, ".")

	if _, err := tok.Verify(forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for swapped payload, got %v", err)
	}

	wrongKey, _ := NewTokens("other-secret", time.Hour)
	raw2, _ := wrongKey.Issue("reader@example.com")
	if _, err := tok.Verify(raw2); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for foreign key, got %v", err)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	tok := newTestTokens(t)
	claims := Claims{Email: "owner@example.com", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "owner@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := tok.Verify(raw); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	tok := newTestTokens(t)
	for _, raw := range []string{"", "abc", "a.b.c"} {
		if _, err := tok.Verify(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Verify(%q): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	tok, err := NewTokens("s", 0)
	if err != nil || tok.ttl != DefaultTTL {
		t.Fatalf("zero ttl should default, got %v, %v", tok, err)
	}
}
