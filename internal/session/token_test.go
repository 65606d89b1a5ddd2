package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokensRoundTrip(t *testing.T) {
	tok, err := NewTokens("secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, exp, err := tok.Issue("session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("expiry should be in the future")
	}
	id, err := tok.Parse(raw)
	if err != nil || id != "session-1" {
		t.Fatalf("expected session-1, got %q %v", id, err)
	}
}

func TestTokensRejectTampering(t *testing.T) {
	a, _ := NewTokens("secret-a", time.Hour)
	b, _ := NewTokens("secret-b", time.Hour)
	raw, _, _ := a.Issue("s")

	if _, err := b.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
	if _, err := a.Parse(raw[:len(raw)-2] + "xx"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for altered signature, got %v", err)
	}
	if _, err := a.Parse("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestTokensExpire(t *testing.T) {
	tok, _ := NewTokens("secret", time.Minute)
	raw, _, _ := tok.Issue("s")

	tok.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := tok.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestTokensRejectOtherAlgorithms(t *testing.T) {
	tok, _ := NewTokens("secret", time.Hour)
	other := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "s",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := other.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = tok.Parse(raw)
	if !errors.Is(err, ErrInvalidToken) || !strings.Contains(err.Error(), "signing method") {
		t.Fatalf("expected signing method rejection, got %v", err)
	}
}

func TestRandomSecret(t *testing.T) {
	a, _ := NewTokens("", 0)
	b, _ := NewTokens("", 0)
	raw, _, _ := a.Issue("s")
	if _, err := b.Parse(raw); err == nil {
		t.Fatal("random secrets should differ")
	}
	if a.TTL() != 12*time.Hour {
		t.Fatalf("expected default ttl, got %v", a.TTL())
	}
}
