package approval

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

// GetByID loads an approval with its steps ordered by step order.
func (e *Engine) GetByID(ctx context.Context, id uint) (*Approval, error) {
	var a Approval
	err := e.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: approval %d", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return &a, nil
}

// GetByRef loads an approval by its external uuid.
func (e *Engine) GetByRef(ctx context.Context, ref string) (*Approval, error) {
	var a Approval
	err := e.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		Where("ref = ?", ref).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: approval %s", workflow.ErrNotFound, ref)
		}
		return nil, err
	}
	return &a, nil
}

// GetStep loads one step.
func (e *Engine) GetStep(ctx context.Context, id uint) (*Step, error) {
	var st Step
	if err := e.db.WithContext(ctx).First(&st, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: step %d", workflow.ErrNotFound, id)
		}
		return nil, err
	}
	return &st, nil
}

// Filter narrows approval listings.
type Filter struct {
	Status    string
	Type      string
	Requester string
	Target    string
}

// Page is offset pagination, newest first by default.
type Page struct {
	Page int
	Size int
}

// List returns approvals matching the filter, newest first.
func (e *Engine) List(ctx context.Context, f Filter, p Page) ([]*Approval, int64, error) {
	if p.Size <= 0 {
		p.Size = 20
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	db := e.db.WithContext(ctx).Model(&Approval{})
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		db = db.Where("type = ?", f.Type)
	}
	if f.Requester != "" {
		db = db.Where("requester_id = ?", f.Requester)
	}
	if f.Target != "" {
		db = db.Where("target_id = ?", f.Target)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var arr []*Approval
	err := db.Order("created_at DESC").Limit(p.Size).Offset((p.Page - 1) * p.Size).Find(&arr).Error
	if err != nil {
		return nil, 0, err
	}
	return arr, total, nil
}

// NextPendingStep returns the pending step with the smallest order, the one
// an in-order approver should pick up next. Steps stay independently
// decidable; this query only guides the order.
func (e *Engine) NextPendingStep(ctx context.Context, approvalID uint) (*Step, error) {
	var st Step
	err := e.db.WithContext(ctx).
		Where("approval_id = ? AND status = ?", approvalID, string(workflow.StepPending)).
		Order("step_order ASC").First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no pending step for approval %d", workflow.ErrNotFound, approvalID)
		}
		return nil, err
	}
	return &st, nil
}

// ListPending returns the pending steps of one approval in chain order.
func (e *Engine) ListPending(ctx context.Context, approvalID uint) ([]*Step, error) {
	var arr []*Step
	err := e.db.WithContext(ctx).
		Where("approval_id = ? AND status = ?", approvalID, string(workflow.StepPending)).
		Order("step_order ASC").Find(&arr).Error
	if err != nil {
		return nil, err
	}
	return arr, nil
}

// ListPendingForApprover returns pending steps assigned to an approver, by
// concrete identity or by role, restricted to approvals still open.
func (e *Engine) ListPendingForApprover(ctx context.Context, ref string, roles []string) ([]*Step, error) {
	open := []string{string(workflow.StatusPending), string(workflow.StatusInProgress)}
	db := e.db.WithContext(ctx).Model(&Step{}).
		Joins("JOIN approvals ON approvals.id = approval_steps.approval_id").
		Where("approval_steps.status = ? AND approvals.status IN ?", string(workflow.StepPending), open)
	if len(roles) > 0 {
		db = db.Where("approval_steps.approver_id = ? OR (approval_steps.approver_id = '' AND approval_steps.approver_role IN ?)", ref, roles)
	} else {
		db = db.Where("approval_steps.approver_id = ?", ref)
	}
	var arr []*Step
	if err := db.Order("approval_steps.approval_id ASC, approval_steps.step_order ASC").Find(&arr).Error; err != nil {
		return nil, err
	}
	return arr, nil
}

// Progress is approved-required over total-required, in percent, from live
// counts. Optional steps never show up in either side.
func (e *Engine) Progress(ctx context.Context, approvalID uint) (int, error) {
	if _, err := e.GetByID(ctx, approvalID); err != nil {
		return 0, err
	}
	var reqTotal, reqApproved int64
	if err := e.db.WithContext(ctx).Model(&Step{}).
		Where("approval_id = ? AND required", approvalID).Count(&reqTotal).Error; err != nil {
		return 0, err
	}
	if reqTotal == 0 {
		return 100, nil
	}
	if err := e.db.WithContext(ctx).Model(&Step{}).
		Where("approval_id = ? AND required AND status = ?", approvalID, string(workflow.StepApproved)).
		Count(&reqApproved).Error; err != nil {
		return 0, err
	}
	return int(reqApproved * 100 / reqTotal), nil
}
