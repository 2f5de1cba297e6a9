package auth

import (
	"testing"
	"time"

	"voiceagent-platform/internal/config"
)

func TestSignAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:   "secret",
		JWTIssuer:   "issuer",
		JWTAudience: "aud",
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Sign(now, 15*time.Minute, "user-1", "org-1", "supervisor")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if tok == "" {
		t.Fatalf("expected token string")
	}

	claims, err := m.Verify(tok, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.OrgID != "org-1" || claims.Role != "supervisor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret"})
	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Sign(now, time.Minute, "u", "o", "r")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(tok, now.Add(10*time.Minute)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestVerifyRejectsMissingOrg(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret"})
	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.Sign(now, time.Minute, "u", "", "r")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected org_id missing error")
	}
}

func TestVerifyUsesSuppliedClock(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret"})

	// A token whose validity window lies entirely in the past: it must
	// verify at its own epoch and fail well after it, regardless of the
	// wall clock.
	issued := time.Unix(1500000000, 0).UTC()
	tok, err := m.Sign(issued, 5*time.Minute, "u", "o", "r")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(tok, issued.Add(time.Minute)); err != nil {
		t.Fatalf("verify at issue epoch: %v", err)
	}
	if _, err := m.Verify(tok, issued.Add(time.Hour)); err == nil {
		t.Fatalf("expected expiry relative to the supplied clock")
	}
}

func TestVerifyRejectsWrongIssuerAndAudience(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	signer, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "other", JWTAudience: "aud"})
	verifier, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "issuer", JWTAudience: "aud"})
	tok, err := signer.Sign(now, time.Minute, "u", "o", "r")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(tok, now); err == nil {
		t.Fatalf("expected issuer mismatch rejected")
	}

	signer, _ = NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "issuer", JWTAudience: "other"})
	tok, err = signer.Sign(now, time.Minute, "u", "o", "r")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(tok, now); err == nil {
		t.Fatalf("expected audience mismatch rejected")
	}
}
