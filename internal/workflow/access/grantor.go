package access

import (
	"context"
	"log/slog"
	"time"
)

// Grant describes one activated access window for the downstream permission
// system. The engine only tracks the window; the grantor performs the actual
// permission change.
type Grant struct {
	ApprovalRef string    `json:"approval_ref"`
	RequesterID string    `json:"requester_id"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id"`
	Scope       string    `json:"scope"`
	Masked      bool      `json:"masked"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Grantor is the downstream permission system boundary.
type Grantor interface {
	Grant(ctx context.Context, g Grant) error
	Revoke(ctx context.Context, g Grant) error
}

// LogGrantor only logs; it stands in where no downstream system is wired.
type LogGrantor struct{}

func (LogGrantor) Grant(_ context.Context, g Grant) error {
	slog.Info("grant access", "approval", g.ApprovalRef, "user", g.RequesterID,
		"target", g.TargetID, "scope", g.Scope, "masked", g.Masked, "expires_at", g.ExpiresAt)
	return nil
}

func (LogGrantor) Revoke(_ context.Context, g Grant) error {
	slog.Info("revoke access", "approval", g.ApprovalRef, "user", g.RequesterID, "target", g.TargetID)
	return nil
}
