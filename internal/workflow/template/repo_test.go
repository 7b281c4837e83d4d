package template

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepo(db)
}

func seedChain(t *testing.T, r *Repo, at workflow.ApprovalType, roles ...string) []*Template {
	t.Helper()
	for _, role := range roles {
		tpl := &Template{ApprovalType: string(at), ApproverRole: role, Required: true}
		if err := r.Create(context.Background(), tpl); err != nil {
			t.Fatalf("create %s: %v", role, err)
		}
	}
	arr, err := r.ActiveForType(context.Background(), at)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	return arr
}

func assertContiguous(t *testing.T, r *Repo, at workflow.ApprovalType, wantLen int) []*Template {
	t.Helper()
	arr, err := r.ActiveForType(context.Background(), at)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(arr) != wantLen {
		t.Fatalf("want %d active steps, got %d", wantLen, len(arr))
	}
	for i, tpl := range arr {
		if tpl.StepOrder != i+1 {
			t.Fatalf("order gap: position %d has order %d", i+1, tpl.StepOrder)
		}
	}
	return arr
}

func TestCreateAppendsAndInsertsShift(t *testing.T) {
	r := newTestRepo(t)
	seedChain(t, r, workflow.TypeAccess, "data-owner", "dept-head")

	// insert between the two existing steps
	mid := &Template{ApprovalType: "ACCESS", ApproverRole: "security", Required: false, StepOrder: 2}
	if err := r.Create(context.Background(), mid); err != nil {
		t.Fatalf("insert: %v", err)
	}
	arr := assertContiguous(t, r, workflow.TypeAccess, 3)
	if arr[1].ApproverRole != "security" || arr[2].ApproverRole != "dept-head" {
		t.Fatalf("insert did not shift: %s / %s", arr[1].ApproverRole, arr[2].ApproverRole)
	}
	if arr[2].Version != 2 {
		t.Fatalf("shifted row must bump version, got %d", arr[2].Version)
	}
}

func TestDeleteStepCompacts(t *testing.T) {
	r := newTestRepo(t)
	arr := seedChain(t, r, workflow.TypeDeploy, "lead", "ops", "director")

	if err := r.DeleteStep(context.Background(), arr[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out := assertContiguous(t, r, workflow.TypeDeploy, 2)
	if out[0].ApproverRole != "lead" || out[1].ApproverRole != "director" {
		t.Fatalf("relative order lost: %s / %s", out[0].ApproverRole, out[1].ApproverRole)
	}
	// the deactivated row must survive for snapshot references
	old, err := r.Get(context.Background(), arr[1].ID)
	if err != nil {
		t.Fatalf("deactivated row gone: %v", err)
	}
	if old.Active {
		t.Fatalf("row should be inactive")
	}
	if err := r.DeleteStep(context.Background(), arr[1].ID); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("double delete: want ErrInvalidState, got %v", err)
	}
	if err := r.DeleteStep(context.Background(), 9999); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("unknown id: want ErrNotFound, got %v", err)
	}
}

func TestReorder(t *testing.T) {
	r := newTestRepo(t)
	arr := seedChain(t, r, workflow.TypeExport, "a", "b", "c")

	if err := r.Reorder(context.Background(), workflow.TypeExport, []uint{arr[2].ID, arr[0].ID, arr[1].ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	out := assertContiguous(t, r, workflow.TypeExport, 3)
	if out[0].ApproverRole != "c" || out[1].ApproverRole != "a" || out[2].ApproverRole != "b" {
		t.Fatalf("unexpected order: %s %s %s", out[0].ApproverRole, out[1].ApproverRole, out[2].ApproverRole)
	}

	// incomplete and foreign id sets are rejected
	if err := r.Reorder(context.Background(), workflow.TypeExport, []uint{arr[0].ID}); !errors.Is(err, workflow.ErrValidation) {
		t.Fatalf("short set: want ErrValidation, got %v", err)
	}
	if err := r.Reorder(context.Background(), workflow.TypeExport, []uint{arr[0].ID, arr[1].ID, 9999}); !errors.Is(err, workflow.ErrValidation) {
		t.Fatalf("foreign id: want ErrValidation, got %v", err)
	}
}

func TestReplaceForTypeKeepsHistory(t *testing.T) {
	r := newTestRepo(t)
	old := seedChain(t, r, workflow.TypeShare, "one", "two")

	repl := []*Template{
		{ApproverRole: "gatekeeper", Required: true},
		{ApproverRole: "counsel", Required: false},
		{ApproverRole: "owner", Required: true},
	}
	if err := r.ReplaceForType(context.Background(), workflow.TypeShare, repl); err != nil {
		t.Fatalf("replace: %v", err)
	}
	out := assertContiguous(t, r, workflow.TypeShare, 3)
	if out[0].ApproverRole != "gatekeeper" {
		t.Fatalf("replacement not active: %s", out[0].ApproverRole)
	}
	for _, o := range old {
		row, err := r.Get(context.Background(), o.ID)
		if err != nil {
			t.Fatalf("superseded row hard-deleted: %v", err)
		}
		if row.Active {
			t.Fatalf("superseded row still active")
		}
		if row.Version != o.Version+1 {
			t.Fatalf("deactivation must bump version: %d -> %d", o.Version, row.Version)
		}
	}
}

func TestUpdateOptimisticConcurrency(t *testing.T) {
	r := newTestRepo(t)
	arr := seedChain(t, r, workflow.TypeManage, "admin")
	tpl := arr[0]

	tpl.Description = "first writer"
	if err := r.Update(context.Background(), tpl, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	// a stale writer carrying the old version must conflict, not overwrite
	tpl.Description = "stale writer"
	if err := r.Update(context.Background(), tpl, 1); !errors.Is(err, workflow.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	cur, _ := r.Get(context.Background(), tpl.ID)
	if cur.Description != "first writer" || cur.Version != 2 {
		t.Fatalf("stale write leaked: %q v%d", cur.Description, cur.Version)
	}
	if err := r.Update(context.Background(), &Template{Model: gorm.Model{ID: 9999}}, 1); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("unknown id: want ErrNotFound, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	r := newTestRepo(t)
	if err := r.Validate(context.Background(), workflow.TypeSubscribe); !errors.Is(err, workflow.ErrValidation) {
		t.Fatalf("empty chain: want ErrValidation, got %v", err)
	}
	seedChain(t, r, workflow.TypeSubscribe, "owner")
	if err := r.Validate(context.Background(), workflow.TypeSubscribe); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
	// all-optional chain is invalid
	repl := []*Template{{ApproverRole: "viewer", Required: false}}
	if err := r.ReplaceForType(context.Background(), workflow.TypeSubscribe, repl); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := r.Validate(context.Background(), workflow.TypeSubscribe); !errors.Is(err, workflow.ErrValidation) {
		t.Fatalf("optional-only chain: want ErrValidation, got %v", err)
	}
}

func TestCopyBetweenTypes(t *testing.T) {
	r := newTestRepo(t)
	seedChain(t, r, workflow.TypeAccess, "data-owner", "dept-head")
	if err := r.CopyBetweenTypes(context.Background(), workflow.TypeAccess, workflow.TypeExport); err != nil {
		t.Fatalf("copy: %v", err)
	}
	out := assertContiguous(t, r, workflow.TypeExport, 2)
	if out[0].ApproverRole != "data-owner" {
		t.Fatalf("copy lost roles: %s", out[0].ApproverRole)
	}
	if err := r.CopyBetweenTypes(context.Background(), workflow.TypeDelete, workflow.TypeExport); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("empty source: want ErrNotFound, got %v", err)
	}
}
