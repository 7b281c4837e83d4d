package approval

import (
	"time"

	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

// Approval is one request working its way through a staged sign-off chain.
// The policy controls are computed once at creation and frozen; the status
// only ever moves forward.
type Approval struct {
	gorm.Model
	Ref           string `gorm:"size:36;uniqueIndex;not null"` // external uuid
	Type          string `gorm:"size:32;index;not null"`
	Title         string `gorm:"size:256;not null"`
	Description   string `gorm:"type:text"`
	RequesterID   string `gorm:"size:64;index;not null"`
	RequesterName string `gorm:"size:128"`
	RequesterDept string `gorm:"size:64"`
	TargetType    string `gorm:"size:32;not null"`
	TargetID      string `gorm:"size:128;not null"`
	TargetName    string `gorm:"size:256"`
	Scope         string `gorm:"size:32;not null"`
	Sensitivity   string `gorm:"size:32;not null"`
	Justification string `gorm:"type:text"`

	// Frozen policy controls (see policy.Resolve).
	RequiresMasking       bool
	RequiresAuditLog      bool
	RequiresExtraApproval bool
	MaxAccessHours        int

	Status string `gorm:"size:16;index;not null;default:PENDING"`

	// Access window, stamped by the lifecycle manager on approval.
	ActivatedAt *time.Time
	ExpiresAt   *time.Time `gorm:"index"`
	RevokedAt   *time.Time

	Version int `gorm:"not null;default:1"`

	// Steps cannot outlive their approval.
	Steps []Step `gorm:"constraint:OnDelete:CASCADE"`
}

func (Approval) TableName() string { return "approvals" }

func (a *Approval) StatusEnum() workflow.ApprovalStatus { return workflow.ApprovalStatus(a.Status) }

// Step is an immutable-at-creation snapshot of a template row, bound to one
// approval. TemplateID and TemplateVersion record exactly which template
// revision was copied and never change afterwards.
type Step struct {
	gorm.Model
	ApprovalID      uint   `gorm:"index;not null"`
	TemplateID      uint   `gorm:"not null"`
	TemplateVersion int    `gorm:"not null"`
	StepOrder       int    `gorm:"not null"`
	ApproverRole    string `gorm:"size:64;index"`
	ApproverDept    string `gorm:"size:64"`
	ApproverID      string `gorm:"size:64;index"`
	Required        bool   `gorm:"not null"`
	Description     string `gorm:"type:text"`

	Status    string `gorm:"size:16;index;not null;default:PENDING"`
	DecidedAt *time.Time
	DecidedBy string `gorm:"size:64"`
	Comment   string `gorm:"type:text"`

	// Independent optimistic-concurrency counter: two approvers racing on
	// the same step produce exactly one commit.
	Version int `gorm:"not null;default:1"`
}

func (Step) TableName() string { return "approval_steps" }

func (s *Step) StatusEnum() workflow.StepStatus { return workflow.StepStatus(s.Status) }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&Approval{}, &Step{}) }
