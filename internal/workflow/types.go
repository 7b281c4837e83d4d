package workflow

// ApprovalType enumerates the actions that can be gated behind an approval
// chain. Stored as-is in template and approval rows.
type ApprovalType string

const (
	TypeAccess    ApprovalType = "ACCESS"
	TypeDeploy    ApprovalType = "DEPLOY"
	TypeCreate    ApprovalType = "CREATE"
	TypeSubscribe ApprovalType = "SUBSCRIBE"
	TypeShare     ApprovalType = "SHARE"
	TypeExport    ApprovalType = "EXPORT"
	TypeExecute   ApprovalType = "EXECUTE"
	TypeModify    ApprovalType = "MODIFY"
	TypeDelete    ApprovalType = "DELETE"
	TypeManage    ApprovalType = "MANAGE"
)

// ApprovalTypes lists every known approval type in a stable order.
func ApprovalTypes() []ApprovalType {
	return []ApprovalType{
		TypeAccess, TypeDeploy, TypeCreate, TypeSubscribe, TypeShare,
		TypeExport, TypeExecute, TypeModify, TypeDelete, TypeManage,
	}
}

func (t ApprovalType) Valid() bool {
	for _, k := range ApprovalTypes() {
		if t == k {
			return true
		}
	}
	return false
}

// ApprovalStatus is the lifecycle of a whole request. Transitions are
// monotonic: PENDING -> IN_PROGRESS -> APPROVED|REJECTED, never backwards.
type ApprovalStatus string

const (
	StatusPending    ApprovalStatus = "PENDING"
	StatusInProgress ApprovalStatus = "IN_PROGRESS"
	StatusApproved   ApprovalStatus = "APPROVED"
	StatusRejected   ApprovalStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// StepStatus is the lifecycle of a single step snapshot. Any non-PENDING
// value is terminal for the step.
type StepStatus string

const (
	StepPending  StepStatus = "PENDING"
	StepApproved StepStatus = "APPROVED"
	StepRejected StepStatus = "REJECTED"
	StepSkipped  StepStatus = "SKIPPED"
)

func (s StepStatus) Terminal() bool { return s != StepPending }
