package chain

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer appends hash-chained JSONL audit events. Every record carries the
// hash of its predecessor, so tampering with past decisions breaks the chain
// on verification.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	prev []byte
}

func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, prev: make([]byte, sha256.Size)}, nil
}

func (w *Writer) Close() error { return w.f.Close() }

// Event is one admin or decision action in the journal.
type Event struct {
	Time   time.Time         `json:"time"`
	Kind   string            `json:"kind"`   // e.g. approval.decide, template.replace
	Actor  string            `json:"actor"`  // username
	Target string            `json:"target"` // record id or ref
	Meta   map[string]string `json:"meta,omitempty"`
	Prev   string            `json:"prev"`
	Hash   string            `json:"hash"`
}

// Log appends one event to the chain.
func (w *Writer) Log(kind, actor, target string, meta map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ev := Event{Time: time.Now().UTC(), Kind: kind, Actor: actor, Target: target, Meta: meta, Prev: hex.EncodeToString(w.prev)}
	b, _ := json.Marshal(ev)
	h := sha256.Sum256(append(w.prev, b...))
	ev.Hash = hex.EncodeToString(h[:])
	b, _ = json.Marshal(ev)
	if _, err := w.f.Write(append(b, '\n')); err != nil {
		return err
	}
	copy(w.prev, h[:])
	return nil
}

// Verify replays a journal file and checks every link. It returns the number
// of valid events, stopping with an error at the first broken link.
func Verify(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	prev := make([]byte, sha256.Size)
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return n, fmt.Errorf("event %d: %w", n+1, err)
		}
		if ev.Prev != hex.EncodeToString(prev) {
			return n, fmt.Errorf("event %d: prev link mismatch", n+1)
		}
		claimed := ev.Hash
		ev.Hash = ""
		body, _ := json.Marshal(ev)
		h := sha256.Sum256(append(prev, body...))
		if hex.EncodeToString(h[:]) != claimed {
			return n, fmt.Errorf("event %d: hash mismatch", n+1)
		}
		copy(prev, h[:])
		n++
	}
	return n, sc.Err()
}
