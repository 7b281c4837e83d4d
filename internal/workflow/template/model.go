package template

import (
	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

// Template is one administrator-configured step in the approval chain of a
// given approval type. Rows are never hard-deleted once referenced by step
// snapshots; superseded rows are kept inactive for audit.
type Template struct {
	gorm.Model
	ApprovalType string `gorm:"size:32;index;not null"`
	StepOrder    int    `gorm:"not null"`
	ApproverRole string `gorm:"size:64"`
	ApproverDept string `gorm:"size:64"`
	// Optional concrete approver; empty means "anyone with the role".
	ApproverID  string `gorm:"size:64"`
	// No default tags here: a zero false must reach the database as-is
	// (gorm substitutes column defaults for zero values on insert).
	Required bool `gorm:"not null"`
	Active   bool `gorm:"not null;index"`
	Description string `gorm:"type:text"`
	// Version increments on every mutation; writes carry the version they
	// read and fail on mismatch.
	Version int `gorm:"not null;default:1"`
}

func (Template) TableName() string { return "approval_templates" }

// Type returns the row's approval type as the workflow enum.
func (t *Template) Type() workflow.ApprovalType { return workflow.ApprovalType(t.ApprovalType) }
