package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
	"github.com/hualuo-tech/datagov/internal/workflow/approval"
)

// Manager stamps access windows when approvals complete and tracks their
// expiry. It implements approval.Activator.
type Manager struct {
	db      *gorm.DB
	grantor Grantor
	now     func() time.Time
}

func NewManager(db *gorm.DB, grantor Grantor) *Manager {
	if grantor == nil {
		grantor = LogGrantor{}
	}
	return &Manager{db: db, grantor: grantor, now: time.Now}
}

func (m *Manager) grant(a *approval.Approval) Grant {
	g := Grant{
		ApprovalRef: a.Ref,
		RequesterID: a.RequesterID,
		TargetType:  a.TargetType,
		TargetID:    a.TargetID,
		Scope:       a.Scope,
		Masked:      a.RequiresMasking,
	}
	if a.ExpiresAt != nil {
		g.ExpiresAt = *a.ExpiresAt
	}
	return g
}

// Activate stamps the access window (activation + expiry from the frozen
// duration) and asks the downstream system to grant. Idempotent: an already
// activated approval is left alone.
func (m *Manager) Activate(ctx context.Context, a *approval.Approval) error {
	if a.StatusEnum() != workflow.StatusApproved {
		return fmt.Errorf("%w: approval %s is %s, not approved", workflow.ErrInvalidState, a.Ref, a.Status)
	}
	activated := m.now().UTC()
	expires := activated.Add(time.Duration(a.MaxAccessHours) * time.Hour)
	res := m.db.WithContext(ctx).Model(&approval.Approval{}).
		Where("id = ? AND status = ? AND activated_at IS NULL", a.ID, string(workflow.StatusApproved)).
		Updates(map[string]any{
			"activated_at": activated,
			"expires_at":   expires,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // already activated
	}
	a.ActivatedAt = &activated
	a.ExpiresAt = &expires
	if err := m.grantor.Grant(ctx, m.grant(a)); err != nil {
		// the window is tracked regardless; the grant can be replayed
		slog.Error("downstream grant failed", "approval", a.Ref, "err", err)
	}
	return nil
}

// FindExpiringWithin returns activated, unrevoked approvals whose window
// closes within the given duration from now.
func (m *Manager) FindExpiringWithin(ctx context.Context, window time.Duration) ([]*approval.Approval, error) {
	now := m.now().UTC()
	var arr []*approval.Approval
	err := m.db.WithContext(ctx).
		Where("status = ? AND revoked_at IS NULL AND expires_at IS NOT NULL AND expires_at > ? AND expires_at <= ?",
			string(workflow.StatusApproved), now, now.Add(window)).
		Order("expires_at ASC").Find(&arr).Error
	if err != nil {
		return nil, err
	}
	return arr, nil
}

// FindExpired returns activated, unrevoked approvals whose window has closed
// at the given instant.
func (m *Manager) FindExpired(ctx context.Context, at time.Time) ([]*approval.Approval, error) {
	var arr []*approval.Approval
	err := m.db.WithContext(ctx).
		Where("status = ? AND revoked_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?",
			string(workflow.StatusApproved), at.UTC()).
		Order("expires_at ASC").Find(&arr).Error
	if err != nil {
		return nil, err
	}
	return arr, nil
}

// SweepExpired revokes every expired grant and marks it handled. A failed
// downstream revoke is logged but the record is still marked, keeping the
// sweep idempotent; the failure shows up in the audit trail for replay.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	expired, err := m.FindExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range expired {
		if err := m.grantor.Revoke(ctx, m.grant(a)); err != nil {
			slog.Error("downstream revoke failed", "approval", a.Ref, "err", err)
		}
		revoked := m.now().UTC()
		res := m.db.WithContext(ctx).Model(&approval.Approval{}).
			Where("id = ? AND revoked_at IS NULL", a.ID).
			Updates(map[string]any{"revoked_at": revoked, "version": gorm.Expr("version + 1")})
		if res.Error != nil {
			return n, res.Error
		}
		if res.RowsAffected > 0 {
			n++
		}
	}
	return n, nil
}
