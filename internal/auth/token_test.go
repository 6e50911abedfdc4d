package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, NewClaims(7, "ada@example.com", time.Hour, time.Now()))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != 7 || claims.Email != "ada@example.com" || claims.JTI == "" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, NewClaims(7, "ada@example.com", -time.Minute, time.Now()))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	issued, err := IssueToken([]byte("secret"), NewClaims(7, "", time.Hour, time.Now()))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	cases := map[string]string{
		"wrong secret":  issued,
		"no separator":  strings.ReplaceAll(issued, ".", ""),
		"extra segment": issued + ".x",
		"garbage":       "definitely-not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			secret := []byte("secret")
			if name == "wrong secret" {
				secret = []byte("other")
			}
			if _, err := ParseToken(secret, token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewClaimsUsesDistinctTokenIDs(t *testing.T) {
	now := time.Now()
	a := NewClaims(1, "", time.Hour, now)
	b := NewClaims(1, "", time.Hour, now)
	if a.JTI == b.JTI {
		t.Fatal("expected distinct token ids")
	}
	if !a.ExpiresAt().Equal(time.Unix(now.Add(time.Hour).Unix(), 0)) {
		t.Fatalf("ExpiresAt() = %v", a.ExpiresAt())
	}
}
