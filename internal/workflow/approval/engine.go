package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hualuo-tech/datagov/internal/identity"
	"github.com/hualuo-tech/datagov/internal/notify"
	workflow "github.com/hualuo-tech/datagov/internal/workflow"
	"github.com/hualuo-tech/datagov/internal/workflow/policy"
	"github.com/hualuo-tech/datagov/internal/workflow/template"
)

// Activator is told when an approval reaches APPROVED so the access window
// can be stamped and the downstream grant performed. Implemented by the
// access lifecycle manager.
type Activator interface {
	Activate(ctx context.Context, a *Approval) error
}

// Engine creates approvals, materializes step snapshots from the current
// template chain, and applies approve/reject/skip transitions under
// optimistic concurrency.
type Engine struct {
	db        *gorm.DB
	templates *template.Repo
	idp       identity.Provider
	activator Activator
	sink      notify.Queue
	now       func() time.Time
}

func NewEngine(db *gorm.DB, templates *template.Repo, idp identity.Provider) *Engine {
	return &Engine{db: db, templates: templates, idp: idp, sink: notify.NewNoop(), now: time.Now}
}

// SetActivator wires the access lifecycle manager (optional).
func (e *Engine) SetActivator(a Activator) { e.activator = a }

// SetSink wires the notification/audit queue (optional; defaults to noop).
func (e *Engine) SetSink(q notify.Queue) { e.sink = q }

// CreateInput carries everything needed to open a new approval.
type CreateInput struct {
	Type          workflow.ApprovalType
	Title         string
	Description   string
	RequesterRef  string
	TargetType    policy.TargetType
	TargetID      string
	TargetName    string
	Scope         policy.Scope
	Sensitivity   policy.Sensitivity
	Justification string
}

// Create opens an approval: compatibility check, policy resolution, then the
// approval row plus one step snapshot per active template, all in a single
// transaction. A partial copy failure aborts the whole batch.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*Approval, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title required", workflow.ErrValidation)
	}
	if err := policy.Check(in.Type, in.TargetType, in.Scope, in.Sensitivity); err != nil {
		return nil, err
	}
	requester, err := e.idp.Resolve(ctx, in.RequesterRef)
	if err != nil {
		return nil, err
	}
	tpls, err := e.templates.ActiveForType(ctx, in.Type)
	if err != nil {
		return nil, err
	}
	if len(tpls) == 0 {
		return nil, fmt.Errorf("%w: no active templates for %s", workflow.ErrIncompatible, in.Type)
	}

	controls := policy.Resolve(in.Sensitivity, in.Scope)
	a := &Approval{
		Ref:           uuid.NewString(),
		Type:          string(in.Type),
		Title:         in.Title,
		Description:   in.Description,
		RequesterID:   requester.ID,
		RequesterName: requester.DisplayName,
		RequesterDept: requester.Department,
		TargetType:    string(in.TargetType),
		TargetID:      in.TargetID,
		TargetName:    in.TargetName,
		Scope:         string(in.Scope),
		Sensitivity:   string(in.Sensitivity),
		Justification: in.Justification,

		RequiresMasking:       controls.RequiresMasking,
		RequiresAuditLog:      controls.RequiresAuditLog,
		RequiresExtraApproval: controls.RequiresAdditionalApproval,
		MaxAccessHours:        controls.MaxAccessDurationHours,

		Status:  string(workflow.StatusPending),
		Version: 1,
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}
		for _, t := range tpls {
			st := &Step{
				ApprovalID:      a.ID,
				TemplateID:      t.ID,
				TemplateVersion: t.Version,
				StepOrder:       t.StepOrder,
				ApproverRole:    t.ApproverRole,
				ApproverDept:    t.ApproverDept,
				ApproverID:      t.ApproverID,
				Required:        t.Required,
				Description:     t.Description,
				Status:          string(workflow.StepPending),
				Version:         1,
			}
			if err := tx.Create(st).Error; err != nil {
				return fmt.Errorf("snapshot template %d: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(a, "approval.created", requester.ID, nil)
	return e.GetByID(ctx, a.ID)
}

// Action is a step decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionSkip    Action = "skip"
)

func (a Action) stepStatus() workflow.StepStatus {
	switch a {
	case ActionApprove:
		return workflow.StepApproved
	case ActionReject:
		return workflow.StepRejected
	case ActionSkip:
		return workflow.StepSkipped
	}
	return ""
}

// DecideInput carries one step decision. ExpectedVersion 0 means "use the
// version read inside this call"; callers racing each other still get exactly
// one commit because the step write is version-guarded either way.
type DecideInput struct {
	StepID          uint
	Action          Action
	Comment         string
	ApproverRef     string
	ExpectedVersion int
}

// Decide applies one terminal transition to a step and recomputes the
// aggregate status in the same transaction, so "step rejected" and "approval
// rejected" are observed together or not at all.
func (e *Engine) Decide(ctx context.Context, in DecideInput) (*Step, error) {
	target := in.Action.stepStatus()
	if target == "" {
		return nil, fmt.Errorf("%w: unknown action %q", workflow.ErrValidation, in.Action)
	}
	var st Step
	if err := e.db.WithContext(ctx).First(&st, in.StepID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: step %d", workflow.ErrNotFound, in.StepID)
		}
		return nil, err
	}
	var ap Approval
	if err := e.db.WithContext(ctx).First(&ap, st.ApprovalID).Error; err != nil {
		return nil, err
	}
	if ap.StatusEnum().Terminal() {
		return nil, fmt.Errorf("%w: approval %s is %s", workflow.ErrInvalidState, ap.Ref, ap.Status)
	}
	if st.StatusEnum() != workflow.StepPending {
		return nil, fmt.Errorf("%w: step %d is %s, not pending", workflow.ErrInvalidState, st.ID, st.Status)
	}
	if in.Action == ActionSkip && st.Required {
		return nil, fmt.Errorf("%w: step %d is required and cannot be skipped", workflow.ErrInvalidState, st.ID)
	}
	expected := in.ExpectedVersion
	if expected == 0 {
		expected = st.Version
	}

	decidedAt := e.now().UTC()
	var aggStatus workflow.ApprovalStatus
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Step{}).
			Where("id = ? AND version = ? AND status = ?", st.ID, expected, string(workflow.StepPending)).
			Updates(map[string]any{
				"status":     string(target),
				"decided_at": decidedAt,
				"decided_by": in.ApproverRef,
				"comment":    in.Comment,
				"version":    gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race: either the version moved or the step closed
			var cur Step
			if err := tx.First(&cur, st.ID).Error; err != nil {
				return fmt.Errorf("%w: step %d", workflow.ErrNotFound, st.ID)
			}
			if cur.StatusEnum() != workflow.StepPending {
				return fmt.Errorf("%w: step %d already %s", workflow.ErrInvalidState, cur.ID, cur.Status)
			}
			return fmt.Errorf("%w: step %d expected version %d, have %d", workflow.ErrConflict, st.ID, expected, cur.Version)
		}

		// aggregate status from live counts, never cached
		var reqTotal, reqApproved int64
		if err := tx.Model(&Step{}).
			Where("approval_id = ? AND required", ap.ID).Count(&reqTotal).Error; err != nil {
			return err
		}
		if err := tx.Model(&Step{}).
			Where("approval_id = ? AND required AND status = ?", ap.ID, string(workflow.StepApproved)).
			Count(&reqApproved).Error; err != nil {
			return err
		}
		switch {
		case in.Action == ActionReject:
			aggStatus = workflow.StatusRejected
		case reqTotal > 0 && reqApproved == reqTotal:
			aggStatus = workflow.StatusApproved
		default:
			aggStatus = workflow.StatusInProgress
		}
		res = tx.Model(&Approval{}).
			Where("id = ? AND status NOT IN ?", ap.ID,
				[]string{string(workflow.StatusApproved), string(workflow.StatusRejected)}).
			Updates(map[string]any{"status": string(aggStatus), "version": gorm.Expr("version + 1")})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// the approval went terminal under us; abort the step write too
			return fmt.Errorf("%w: approval %s closed concurrently", workflow.ErrInvalidState, ap.Ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out, err := e.GetStep(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	fresh, err := e.GetByID(ctx, ap.ID)
	if err != nil {
		return nil, err
	}
	e.publish(fresh, "step."+strings.ToLower(string(target)), in.ApproverRef, map[string]string{
		"step_order": fmt.Sprint(out.StepOrder),
		"comment":    in.Comment,
	})
	switch aggStatus {
	case workflow.StatusApproved:
		if e.activator != nil {
			if err := e.activator.Activate(ctx, fresh); err != nil {
				slog.Error("access activation failed", "approval", fresh.Ref, "err", err)
			}
		}
		e.publish(fresh, "approval.approved", in.ApproverRef, nil)
	case workflow.StatusRejected:
		e.publish(fresh, "approval.rejected", in.ApproverRef, map[string]string{"comment": in.Comment})
	}
	return out, nil
}

// publish pushes a transition event when the frozen policy asks for an audit
// trail. Failure is logged and swallowed: the transition already committed.
func (e *Engine) publish(a *Approval, kind, actor string, meta map[string]string) {
	if e.sink == nil || !a.RequiresAuditLog {
		return
	}
	evt := notify.Event{Time: e.now().UTC(), Kind: kind, ApprovalRef: a.Ref, Actor: actor, Meta: meta}
	if err := e.sink.Publish(evt); err != nil {
		slog.Warn("notify publish failed", "kind", kind, "approval", a.Ref, "err", err)
	}
}
