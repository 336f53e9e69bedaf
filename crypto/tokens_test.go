package crypto

import (
	"testing"
	"time"
)

var tokenTestSecret = []byte("test-secret-test-secret-test-secret!")

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := NewSessionToken(tokenTestSecret, "Storefront", "acct-1", "ada@example.com", "user", true, time.Hour)
	if err != nil {
		t.Fatalf("NewSessionToken() failed: %v", err)
	}

	claims, err := ParseSessionToken(tokenTestSecret, token)
	if err != nil {
		t.Fatalf("ParseSessionToken() failed: %v", err)
	}
	if claims.Issuer != "Storefront" {
		t.Errorf("issuer = %q, want %q", claims.Issuer, "Storefront")
	}
	if claims.Subject != "acct-1" {
		t.Errorf("subject = %q, want %q", claims.Subject, "acct-1")
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("email = %q, want %q", claims.Email, "ada@example.com")
	}
	if claims.Role != "user" {
		t.Errorf("role = %q, want %q", claims.Role, "user")
	}
	if !claims.EmailVerified {
		t.Error("email_verified claim lost")
	}
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := NewSessionToken(tokenTestSecret, "Storefront", "acct-1", "ada@example.com", "user", false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	other := []byte("other-secret-other-secret-other-sec!")
	if _, err := ParseSessionToken(other, token); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := NewSessionToken(tokenTestSecret, "Storefront", "acct-1", "ada@example.com", "user", false, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ParseSessionToken(tokenTestSecret, token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestSessionTokenGarbage(t *testing.T) {
	if _, err := ParseSessionToken(tokenTestSecret, "not.a.jwt"); err == nil {
		t.Fatal("garbage token accepted")
	}
}
