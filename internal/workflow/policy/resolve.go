package policy

import (
	"fmt"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

// Controls are the security requirements derived for one request. They are
// frozen onto the approval record at creation time and never recomputed.
type Controls struct {
	RequiresMasking            bool `json:"requires_masking"`
	RequiresAuditLog           bool `json:"requires_audit_log"`
	RequiresAdditionalApproval bool `json:"requires_additional_approval"`
	MaxAccessDurationHours     int  `json:"max_access_duration_hours"`
}

// Personal-data requests never keep access longer than this, whatever the
// sensitivity table would otherwise allow.
const personalDataCapHours = 72

const (
	highRiskCapHours = 72
	defaultCapHours  = 168
)

// Resolve derives the required controls from the sensitivity of the target
// and the requested scope. Pure and total: every valid (sensitivity, scope)
// pair yields a defined result, and equal inputs yield equal outputs.
func Resolve(sens Sensitivity, scope Scope) Controls {
	c := Controls{
		RequiresMasking:            sens.RequiresMasking() || scope.RequiresMasking(),
		RequiresAuditLog:           sens.RequiresAuditLog() || scope.HighRisk(),
		RequiresAdditionalApproval: sens.RequiresAdditionalApproval(),
	}
	cap := defaultCapHours
	if scope.HighRisk() {
		cap = highRiskCapHours
	}
	c.MaxAccessDurationHours = min(sens.MaxUsageDays()*24, cap)
	if sens.PersonalData() {
		c.RequiresMasking = true
		c.MaxAccessDurationHours = min(c.MaxAccessDurationHours, personalDataCapHours)
	}
	return c
}

// Check validates a (type, target, scope, sensitivity) combination before an
// approval is created. Violations surface as ErrIncompatible.
func Check(at workflow.ApprovalType, target TargetType, scope Scope, sens Sensitivity) error {
	if !at.Valid() {
		return fmt.Errorf("%w: unknown approval type %q", workflow.ErrIncompatible, at)
	}
	if !target.Valid() {
		return fmt.Errorf("%w: unknown target type %q", workflow.ErrIncompatible, target)
	}
	if !scope.Valid() {
		return fmt.Errorf("%w: unknown access scope %q", workflow.ErrIncompatible, scope)
	}
	if !sens.Valid() {
		return fmt.Errorf("%w: unknown sensitivity %q", workflow.ErrIncompatible, sens)
	}
	if !target.Allows(at) {
		return fmt.Errorf("%w: approval type %s not allowed for target %s", workflow.ErrIncompatible, at, target)
	}
	if !target.AllowsScope(scope) {
		return fmt.Errorf("%w: scope %s not allowed for target %s", workflow.ErrIncompatible, scope, target)
	}
	return nil
}
