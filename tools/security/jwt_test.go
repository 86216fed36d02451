package security

import (
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("unit-test-secret"))

	token, hash, expireAt, err := Generate(opts, "user-123", []string{"read"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if hash == "" || !time.Now().Before(expireAt) {
		t.Fatalf("hash=%q expireAt=%v", hash, expireAt)
	}

	claims, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	sub, err := claims.Subject()
	if err != nil {
		t.Fatalf("subject: %v", err)
	}
	if sub != "user-123" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, _, err := Generate(DefaultOptions([]byte("secret-a")), "user-123", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("secret-b")), token); err == nil {
		t.Fatal("token signed with another secret should not verify")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if _, err := Verify(DefaultOptions([]byte("secret")), "invalid_token_string"); err == nil {
		t.Fatal("garbage token should not verify")
	}
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: []byte("s"), Alg: "RS256"}
	if _, _, _, err := Generate(opts, "u", nil); err == nil {
		t.Fatal("RS256 should be rejected")
	}
}
