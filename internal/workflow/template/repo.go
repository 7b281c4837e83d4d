package template

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

// Repo provides GORM-based persistence for approval-chain templates.
type Repo struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&Template{}) }
func NewRepo(db *gorm.DB) *Repo     { return &Repo{db: db} }

// ActiveForType returns the active chain for an approval type ordered by
// step order.
func (r *Repo) ActiveForType(ctx context.Context, at workflow.ApprovalType) ([]*Template, error) {
	var arr []*Template
	err := r.db.WithContext(ctx).
		Where("approval_type = ? AND active", string(at)).
		Order("step_order ASC").Find(&arr).Error
	if err != nil {
		return nil, err
	}
	return arr, nil
}

// Get loads one template row, active or not.
func (r *Repo) Get(ctx context.Context, id uint) (*Template, error) {
	var t Template
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: template %d", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a template into the active chain for its type. A zero or
// past-the-end StepOrder appends; inserting at an occupied order shifts all
// later active rows up by one.
func (r *Repo) Create(ctx context.Context, t *Template) error {
	if !workflow.ApprovalType(t.ApprovalType).Valid() {
		return fmt.Errorf("%w: unknown approval type %q", workflow.ErrValidation, t.ApprovalType)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Template{}).
			Where("approval_type = ? AND active", t.ApprovalType).Count(&n).Error; err != nil {
			return err
		}
		if t.StepOrder <= 0 || t.StepOrder > int(n)+1 {
			t.StepOrder = int(n) + 1
		} else if t.StepOrder <= int(n) {
			if err := tx.Model(&Template{}).
				Where("approval_type = ? AND active AND step_order >= ?", t.ApprovalType, t.StepOrder).
				Updates(map[string]any{
					"step_order": gorm.Expr("step_order + 1"),
					"version":    gorm.Expr("version + 1"),
				}).Error; err != nil {
				return err
			}
		}
		t.Active = true
		t.Version = 1
		return tx.Create(t).Error
	})
}

// Update rewrites the mutable fields of one row under optimistic concurrency.
// expectedVersion must match the stored version or the write fails with
// ErrConflict; step order is not touched here (see Reorder).
func (r *Repo) Update(ctx context.Context, t *Template, expectedVersion int) error {
	res := r.db.WithContext(ctx).Model(&Template{}).
		Where("id = ? AND version = ?", t.ID, expectedVersion).
		Updates(map[string]any{
			"approver_role": t.ApproverRole,
			"approver_dept": t.ApproverDept,
			"approver_id":   t.ApproverID,
			"required":      t.Required,
			"description":   t.Description,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&Template{}).Where("id = ?", t.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: template %d", workflow.ErrNotFound, t.ID)
		}
		return fmt.Errorf("%w: template %d expected version %d", workflow.ErrConflict, t.ID, expectedVersion)
	}
	return nil
}

// DeleteStep deactivates one step and compacts later orders down by one so
// the active chain stays contiguous. The row itself is preserved: existing
// step snapshots still reference it.
func (r *Repo) DeleteStep(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Template
		if err := tx.First(&t, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: template %d", workflow.ErrNotFound, id)
			}
			return err
		}
		if !t.Active {
			return fmt.Errorf("%w: template %d already inactive", workflow.ErrInvalidState, id)
		}
		if err := tx.Model(&Template{}).Where("id = ?", id).
			Updates(map[string]any{"active": false, "version": gorm.Expr("version + 1")}).Error; err != nil {
			return err
		}
		return tx.Model(&Template{}).
			Where("approval_type = ? AND active AND step_order > ?", t.ApprovalType, t.StepOrder).
			Updates(map[string]any{
				"step_order": gorm.Expr("step_order - 1"),
				"version":    gorm.Expr("version + 1"),
			}).Error
	})
}

// Reorder atomically reassigns step orders 1..N following orderedIDs, which
// must be exactly the active set for the type.
func (r *Repo) Reorder(ctx context.Context, at workflow.ApprovalType, orderedIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []*Template
		if err := tx.Where("approval_type = ? AND active", string(at)).Find(&active).Error; err != nil {
			return err
		}
		if len(active) != len(orderedIDs) {
			return fmt.Errorf("%w: reorder needs all %d active steps, got %d ids", workflow.ErrValidation, len(active), len(orderedIDs))
		}
		known := map[uint]bool{}
		for _, t := range active {
			known[t.ID] = true
		}
		seen := map[uint]bool{}
		for _, id := range orderedIDs {
			if !known[id] {
				return fmt.Errorf("%w: template %d is not an active %s step", workflow.ErrValidation, id, at)
			}
			if seen[id] {
				return fmt.Errorf("%w: template %d listed twice", workflow.ErrValidation, id)
			}
			seen[id] = true
		}
		for i, id := range orderedIDs {
			if err := tx.Model(&Template{}).Where("id = ?", id).
				Updates(map[string]any{"step_order": i + 1, "version": gorm.Expr("version + 1")}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceForType swaps the active chain of a type in one transaction: the
// previous set is deactivated (and kept) and newSet becomes steps 1..N.
func (r *Repo) ReplaceForType(ctx context.Context, at workflow.ApprovalType, newSet []*Template) error {
	if len(newSet) == 0 {
		return fmt.Errorf("%w: replacement set for %s is empty", workflow.ErrValidation, at)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Template{}).
			Where("approval_type = ? AND active", string(at)).
			Updates(map[string]any{"active": false, "version": gorm.Expr("version + 1")}).Error; err != nil {
			return err
		}
		for i, t := range newSet {
			t.ID = 0
			t.ApprovalType = string(at)
			t.StepOrder = i + 1
			t.Active = true
			t.Version = 1
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CopyBetweenTypes replaces the dst chain with a copy of the src chain.
func (r *Repo) CopyBetweenTypes(ctx context.Context, src, dst workflow.ApprovalType) error {
	arr, err := r.ActiveForType(ctx, src)
	if err != nil {
		return err
	}
	if len(arr) == 0 {
		return fmt.Errorf("%w: no active templates for %s", workflow.ErrNotFound, src)
	}
	cp := make([]*Template, 0, len(arr))
	for _, t := range arr {
		cp = append(cp, &Template{
			ApprovalType: string(dst),
			StepOrder:    t.StepOrder,
			ApproverRole: t.ApproverRole,
			ApproverDept: t.ApproverDept,
			ApproverID:   t.ApproverID,
			Required:     t.Required,
			Description:  t.Description,
		})
	}
	return r.ReplaceForType(ctx, dst, cp)
}

// Validate checks the active chain of a type: step orders must be exactly
// 1..N and at least one step must be required.
func (r *Repo) Validate(ctx context.Context, at workflow.ApprovalType) error {
	arr, err := r.ActiveForType(ctx, at)
	if err != nil {
		return err
	}
	if len(arr) == 0 {
		return fmt.Errorf("%w: no active templates for %s", workflow.ErrValidation, at)
	}
	required := false
	for i, t := range arr {
		if t.StepOrder != i+1 {
			return fmt.Errorf("%w: %s chain has order %d at position %d", workflow.ErrValidation, at, t.StepOrder, i+1)
		}
		if t.Required {
			required = true
		}
	}
	if !required {
		return fmt.Errorf("%w: %s chain has no required step", workflow.ErrValidation, at)
	}
	return nil
}
