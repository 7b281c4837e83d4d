package identity

import "context"

// User is the resolved identity used to populate requester and approver
// fields on workflow records.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Department  string `json:"department"`
}

// Provider resolves an external user reference (username or id) to a full
// identity. Implementations: the gorm-backed Directory, or Static for tests.
type Provider interface {
	Resolve(ctx context.Context, ref string) (*User, error)
}

// Static is a fixed in-memory provider for tests and seeding.
type Static map[string]User

func (s Static) Resolve(_ context.Context, ref string) (*User, error) {
	if u, ok := s[ref]; ok {
		cp := u
		return &cp, nil
	}
	// unknown refs resolve to a bare identity; approvals still record the ref
	return &User{ID: ref, DisplayName: ref}, nil
}
