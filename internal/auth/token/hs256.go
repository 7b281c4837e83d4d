package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Manager signs and verifies HS256 bearer tokens for the portal API.
type Manager struct{ secret []byte }

func NewManager(secret string) *Manager { return &Manager{secret: []byte(secret)} }

// Claims identify the caller across portal requests.
type Claims struct {
	Sub   string   `json:"sub"`
	Roles []string `json:"roles,omitempty"`
	Dept  string   `json:"dept,omitempty"`
	Exp   int64    `json:"exp"`
}

func b64enc(b []byte) string          { return base64.RawURLEncoding.EncodeToString(b) }
func b64dec(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

// Sign issues a token; ttl <= 0 means no expiry (dev convenience).
func (m *Manager) Sign(c Claims, ttl time.Duration) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	if ttl > 0 {
		c.Exp = time.Now().Add(ttl).Unix()
	}
	h, _ := json.Marshal(header)
	cb, _ := json.Marshal(c)
	payload := b64enc(h) + "." + b64enc(cb)
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return payload + "." + b64enc(mac.Sum(nil)), nil
}

// Verify checks the signature and expiry and returns the claims.
func (m *Manager) Verify(tok string) (*Claims, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, errors.New("bad token")
	}
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	got, err := b64dec(parts[2])
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(mac.Sum(nil), got) {
		return nil, errors.New("bad signature")
	}
	cb, err := b64dec(parts[1])
	if err != nil {
		return nil, err
	}
	var c Claims
	if err := json.Unmarshal(cb, &c); err != nil {
		return nil, err
	}
	if c.Exp > 0 && time.Now().Unix() > c.Exp {
		return nil, errors.New("expired")
	}
	return &c, nil
}
