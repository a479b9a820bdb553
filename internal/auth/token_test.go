package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		Sub:   "usr_1",
		Name:  "avery",
		Email: "avery@example.com",
		JTI:   "jti-1",
		Exp:   time.Now().Add(time.Hour).Unix(),
	}

	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Email != claims.Email || parsed.JTI != claims.JTI {
		t.Fatalf("claims round-trip mismatch: %+v", parsed)
	}
}

func TestParseTokenRejectsBadSignature(t *testing.T) {
	claims := Claims{Sub: "usr_1", Name: "avery", JTI: "jti-1", Exp: time.Now().Add(time.Hour).Unix()}
	token, err := IssueToken([]byte("secret-a"), claims)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken([]byte("secret-b"), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{Sub: "usr_1", Name: "avery", JTI: "jti-1", Exp: time.Now().Add(-time.Minute).Unix()}
	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := ParseToken(secret, token); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}
