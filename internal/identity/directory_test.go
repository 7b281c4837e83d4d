package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	workflow "github.com/hualuo-tech/datagov/internal/workflow"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewDirectory(db)
}

func TestDirectoryResolve(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	acc := &Account{Username: "alice", DisplayName: "Alice", Email: "alice@example.com", Department: "analytics", Active: true}
	if err := d.Create(ctx, acc); err != nil {
		t.Fatalf("create: %v", err)
	}

	byName, err := d.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve by username: %v", err)
	}
	if byName.ID != "alice" || byName.Department != "analytics" {
		t.Fatalf("unexpected user: %+v", byName)
	}

	byID, err := d.Resolve(ctx, fmt.Sprint(acc.ID))
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if byID.ID != "alice" {
		t.Fatalf("id lookup should land on the same account, got %+v", byID)
	}

	if _, err := d.Resolve(ctx, "nobody"); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("unknown ref: expect ErrNotFound, got %v", err)
	}
}

func TestDirectoryIgnoresInactive(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	acc := &Account{Username: "gone", Active: true}
	if err := d.Create(ctx, acc); err != nil {
		t.Fatalf("create: %v", err)
	}
	// deactivation with an explicit column update; a zero bool is skipped by
	// struct updates under the default tag
	if err := d.db.Model(acc).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := d.Resolve(ctx, "gone"); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("inactive account should not resolve, got %v", err)
	}
	arr, err := d.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(arr) != 0 {
		t.Fatalf("inactive accounts should not be listed, got %d", len(arr))
	}
}

func TestStaticFallsBackToBareIdentity(t *testing.T) {
	s := Static{"alice": {ID: "alice", DisplayName: "Alice"}}
	u, err := s.Resolve(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.ID != "stranger" {
		t.Fatalf("unknown refs keep the ref as the id, got %+v", u)
	}
}
