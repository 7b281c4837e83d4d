package rbac

import "testing"

func TestPolicyGrantAndWildcard(t *testing.T) {
	p := NewPolicy()
	p.Grant("alice", "approvals:decide")
	if !p.Can("alice", "approvals:decide") {
		t.Fatalf("granted perm denied")
	}
	if p.Can("alice", "templates:manage") {
		t.Fatalf("ungranted perm allowed")
	}
	if p.Can("bob", "approvals:decide") {
		t.Fatalf("unknown user allowed")
	}
	p.Grant("root", "*")
	if !p.Can("root", "anything:at-all") {
		t.Fatalf("wildcard must allow everything")
	}
}

func TestPolicyFromRoles(t *testing.T) {
	p := NewPolicy()
	p.FromRoles("carol", []string{"approver"})
	if !p.Can("carol", "approvals:decide") || p.Can("carol", "templates:manage") {
		t.Fatalf("approver role grants wrong permissions")
	}
	p.FromRoles("dan", []string{"admin"})
	if !p.Can("dan", "templates:manage") {
		t.Fatalf("admin wildcard missing")
	}
}
