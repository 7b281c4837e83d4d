package rbac

// PolicyInterface answers "may this user do that" for permission strings of
// the form "resource:action" (approvals:decide, templates:manage, ...).
type PolicyInterface interface {
	Can(user, perm string) bool
}

// Policy is a simple in-memory allow list, rebuilt from role grants at boot.
type Policy struct {
	// allow[user][permission]
	allow map[string]map[string]bool
}

func NewPolicy() *Policy { return &Policy{allow: map[string]map[string]bool{}} }

func (p *Policy) Grant(user, perm string) {
	m := p.allow[user]
	if m == nil {
		m = map[string]bool{}
		p.allow[user] = m
	}
	m[perm] = true
}

func (p *Policy) Can(user, perm string) bool {
	if m := p.allow[user]; m != nil {
		if m[perm] || m["*"] {
			return true
		}
	}
	return false
}

// RoleGrants maps portal roles to the permissions they carry. Seeded at
// first boot, then managed by administrators.
var RoleGrants = map[string][]string{
	"admin":     {"*"},
	"steward":   {"approvals:read", "approvals:decide", "templates:manage", "catalog:read", "catalog:manage"},
	"approver":  {"approvals:read", "approvals:decide", "catalog:read"},
	"requester": {"approvals:read", "approvals:create", "catalog:read"},
	"viewer":    {"catalog:read"},
}

// FromRoles builds the effective allow list for a user's roles.
func (p *Policy) FromRoles(user string, roles []string) {
	for _, r := range roles {
		for _, perm := range RoleGrants[r] {
			p.Grant(user, perm)
		}
	}
}
