package chain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChainAppendAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "journal.log")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Log("approval.decide", "alice", "step-7", map[string]string{"action": "approve"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := w.Log("template.replace", "admin", "ACCESS", nil); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	n, err := Verify(path)
	if err != nil || n != 2 {
		t.Fatalf("verify: n=%d err=%v", n, err)
	}
}

func TestChainDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	w, _ := NewWriter(path)
	_ = w.Log("approval.decide", "alice", "step-1", nil)
	_ = w.Log("approval.decide", "bob", "step-2", nil)
	_ = w.Close()

	b, _ := os.ReadFile(path)
	tampered := strings.Replace(string(b), `"actor":"alice"`, `"actor":"eve"`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if _, err := Verify(path); err == nil {
		t.Fatalf("tampered journal must fail verification")
	}
}
