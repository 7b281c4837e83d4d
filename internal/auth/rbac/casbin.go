package rbac

import (
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
)

// CasbinPolicy enforces permissions through a Casbin model/policy pair,
// letting deployments manage grants outside the binary.
type CasbinPolicy struct {
	enforcer *casbin.Enforcer
}

func NewCasbinPolicy(modelPath, policyPath string) (*CasbinPolicy, error) {
	e, err := casbin.NewEnforcer(modelPath, policyPath)
	if err != nil {
		return nil, err
	}
	return &CasbinPolicy{enforcer: e}, nil
}

// Can splits "resource:action" into a Casbin (sub, obj, act) request.
func (p *CasbinPolicy) Can(user, perm string) bool {
	obj, act := perm, "*"
	if i := strings.IndexByte(perm, ':'); i >= 0 {
		obj, act = perm[:i], perm[i+1:]
	}
	allowed, err := p.enforcer.Enforce(user, obj, act)
	if err != nil {
		slog.Warn("casbin enforce failed", "user", user, "perm", perm, "err", err)
		return false
	}
	return allowed
}
