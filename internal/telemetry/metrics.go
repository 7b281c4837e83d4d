package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// WorkflowMetrics counts approval lifecycle events. Instruments are created
// against the global meter provider, so they degrade to no-ops when telemetry
// is disabled.
type WorkflowMetrics struct {
	created   metric.Int64Counter
	decisions metric.Int64Counter
	conflicts metric.Int64Counter
	revoked   metric.Int64Counter
}

func NewWorkflowMetrics() (*WorkflowMetrics, error) {
	meter := otel.Meter("datagov.workflow")
	m := &WorkflowMetrics{}
	var err error
	if m.created, err = meter.Int64Counter("approvals.created"); err != nil {
		return nil, err
	}
	if m.decisions, err = meter.Int64Counter("approvals.step_decisions"); err != nil {
		return nil, err
	}
	if m.conflicts, err = meter.Int64Counter("approvals.version_conflicts"); err != nil {
		return nil, err
	}
	if m.revoked, err = meter.Int64Counter("access.grants_revoked"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WorkflowMetrics) Created(ctx context.Context, approvalType string) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("type", approvalType)))
}

func (m *WorkflowMetrics) Decision(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func (m *WorkflowMetrics) Conflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1)
}

func (m *WorkflowMetrics) Revoked(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.revoked.Add(ctx, int64(n))
}
