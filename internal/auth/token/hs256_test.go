package token

import (
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundtrip(t *testing.T) {
	m := NewManager("secret")
	tok, err := m.Sign(Claims{Sub: "alice", Roles: []string{"requester"}, Dept: "analytics"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	c, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Sub != "alice" || len(c.Roles) != 1 || c.Roles[0] != "requester" || c.Dept != "analytics" {
		t.Fatalf("unexpected claims: %+v", c)
	}
	if c.Exp == 0 {
		t.Fatalf("ttl > 0 should set exp")
	}
}

func TestVerifyRejectsTamperAndWrongKey(t *testing.T) {
	m := NewManager("secret")
	tok, _ := m.Sign(Claims{Sub: "alice"}, time.Hour)

	parts := strings.Split(tok, ".")
	forged := parts[0] + "." + b64enc([]byte(`{"sub":"mallory"}`)) + "." + parts[2]
	if _, err := m.Verify(forged); err == nil {
		t.Fatalf("tampered payload should be rejected")
	}
	if _, err := NewManager("other").Verify(tok); err == nil {
		t.Fatalf("wrong key should be rejected")
	}
	if _, err := m.Verify("not.a.token.at.all"); err == nil {
		t.Fatalf("malformed token should be rejected")
	}
}

func TestVerifyExpiry(t *testing.T) {
	m := NewManager("secret")
	tok, _ := m.Sign(Claims{Sub: "alice", Exp: time.Now().Add(-time.Minute).Unix()}, 0)
	if _, err := m.Verify(tok); err == nil {
		t.Fatalf("expired token should be rejected")
	}
	// ttl <= 0 with no explicit exp never expires
	tok, _ = m.Sign(Claims{Sub: "alice"}, 0)
	if _, err := m.Verify(tok); err != nil {
		t.Fatalf("no-expiry token: %v", err)
	}
}
