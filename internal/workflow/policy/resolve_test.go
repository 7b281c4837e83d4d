package policy

import (
	"errors"
	"testing"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

func TestResolveTotalAndDeterministic(t *testing.T) {
	for _, sens := range Sensitivities() {
		for _, scope := range Scopes() {
			a := Resolve(sens, scope)
			b := Resolve(sens, scope)
			if a != b {
				t.Fatalf("resolve(%s,%s) not deterministic: %+v vs %+v", sens, scope, a, b)
			}
			if a.MaxAccessDurationHours <= 0 {
				t.Fatalf("resolve(%s,%s): non-positive duration %d", sens, scope, a.MaxAccessDurationHours)
			}
		}
	}
}

func TestResolvePersonalData(t *testing.T) {
	c := Resolve(SensPII, ScopeReadFull)
	if !c.RequiresMasking {
		t.Fatalf("PII must force masking even when the scope does not require it")
	}
	if c.MaxAccessDurationHours > 720 {
		t.Fatalf("PII duration %dh exceeds 30 days", c.MaxAccessDurationHours)
	}
	if c.MaxAccessDurationHours > 72 {
		t.Fatalf("personal data must clamp to the strictest bound, got %dh", c.MaxAccessDurationHours)
	}
}

func TestResolveHighRiskCap(t *testing.T) {
	c := Resolve(SensPublic, ScopeAdmin)
	if c.MaxAccessDurationHours != 72 {
		t.Fatalf("high-risk scope should cap at 72h, got %d", c.MaxAccessDurationHours)
	}
	if !c.RequiresAuditLog {
		t.Fatalf("high-risk scope must require an audit log")
	}
	c = Resolve(SensPublic, ScopeReadFull)
	if c.MaxAccessDurationHours != 168 {
		t.Fatalf("low-risk public read should cap at 168h, got %d", c.MaxAccessDurationHours)
	}
}

func TestResolveExtraApprovalFlag(t *testing.T) {
	if !Resolve(SensRegulated, ScopeRead).RequiresAdditionalApproval {
		t.Fatalf("regulated data must flag an additional approval step")
	}
	if Resolve(SensInternal, ScopeRead).RequiresAdditionalApproval {
		t.Fatalf("internal data must not flag an additional approval step")
	}
}

func TestCheckCompatibility(t *testing.T) {
	if err := Check(workflow.TypeAccess, TargetDataset, ScopeRead, SensPII); err != nil {
		t.Fatalf("ACCESS+DATASET+READ should be compatible: %v", err)
	}
	// deploying a report makes no sense
	err := Check(workflow.TypeDeploy, TargetReport, ScopeRead, SensPublic)
	if !errors.Is(err, workflow.ErrIncompatible) {
		t.Fatalf("want ErrIncompatible, got %v", err)
	}
	// admin scope on a plain report is not offered
	err = Check(workflow.TypeAccess, TargetReport, ScopeAdmin, SensPublic)
	if !errors.Is(err, workflow.ErrIncompatible) {
		t.Fatalf("want ErrIncompatible for scope, got %v", err)
	}
	err = Check(workflow.ApprovalType("BOGUS"), TargetDataset, ScopeRead, SensPublic)
	if !errors.Is(err, workflow.ErrIncompatible) {
		t.Fatalf("want ErrIncompatible for unknown type, got %v", err)
	}
}

func TestTargetClasses(t *testing.T) {
	cases := map[TargetType]TargetClass{
		TargetDataset:      ClassData,
		TargetDashboard:    ClassAnalytics,
		TargetCluster:      ClassInfrastructure,
		TargetSecurityRule: ClassSecurity,
		TargetMLModel:      ClassService,
		TargetFileShare:    ClassFilesystem,
	}
	for tt, want := range cases {
		if got := tt.Class(); got != want {
			t.Fatalf("%s: class %s, want %s", tt, got, want)
		}
	}
}
