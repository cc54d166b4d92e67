package httpapi

import (
	"strings"
	"testing"
	"time"

	"github.com/ilaydakx/pos-system/internal/domain"
)

func TestUnlockWithCorrectPIN(t *testing.T) {
	m := NewUnlockManager("test-secret", time.Hour, "4321")

	resp, err := m.Unlock(domain.UnlockRequest{PIN: "4321"})
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected a token")
	}
	if err := m.ParseToken(resp.AccessToken); err != nil {
		t.Fatalf("ParseToken rejected a fresh token: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, resp.ExpiresAt); err != nil {
		t.Fatalf("expires_at not RFC3339: %q", resp.ExpiresAt)
	}
}

func TestUnlockRejectsWrongPIN(t *testing.T) {
	m := NewUnlockManager("test-secret", time.Hour, "4321")

	for _, pin := range []string{"1234", "", "  ", "43210"} {
		if _, err := m.Unlock(domain.UnlockRequest{PIN: pin}); err == nil {
			t.Errorf("pin %q: expected rejection", pin)
		}
	}
}

func TestUnlockTrimsPIN(t *testing.T) {
	m := NewUnlockManager("test-secret", time.Hour, "4321")

	if _, err := m.Unlock(domain.UnlockRequest{PIN: "  4321  "}); err != nil {
		t.Fatalf("trimmed pin rejected: %v", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	m := NewUnlockManager("test-secret", time.Hour, "4321")

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if err := m.ParseToken(token); err == nil {
			t.Errorf("token %q: expected rejection", token)
		}
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewUnlockManager("secret-one", time.Hour, "4321")
	verifier := NewUnlockManager("secret-two", time.Hour, "4321")

	resp, err := issuer.Unlock(domain.UnlockRequest{PIN: "4321"})
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	m := NewUnlockManager("test-secret", time.Hour, "4321")

	token, err := m.sign(time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := m.ParseToken(token); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestParseTokenRejectsAlgNone(t *testing.T) {
	m := NewUnlockManager("test-secret", time.Hour, "4321")

	// header {"alg":"none","typ":"JWT"} with an empty signature
	forged := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJ0ZXJtaW5hbCJ9."
	if err := m.ParseToken(forged); err == nil {
		t.Fatal("alg=none token was accepted")
	}
	if !strings.HasPrefix(forged, "eyJ") {
		t.Fatal("test fixture corrupted")
	}
}
