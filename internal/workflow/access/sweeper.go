package access

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs SweepExpired on a fixed interval until the context closes.
// Delays only delay revocation; nothing breaks if a tick is missed.
type Sweeper struct {
	mgr       *Manager
	interval  time.Duration
	onRevoked func(context.Context, int)
}

func NewSweeper(mgr *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{mgr: mgr, interval: interval}
}

// OnRevoked installs a hook called after each tick that revoked grants,
// typically a metrics counter.
func (s *Sweeper) OnRevoked(fn func(context.Context, int)) { s.onRevoked = fn }

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.mgr.SweepExpired(ctx)
			if err != nil {
				slog.Error("expiry sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("expiry sweep revoked grants", "count", n)
				if s.onRevoked != nil {
					s.onRevoked(ctx, n)
				}
			}
		}
	}
}
