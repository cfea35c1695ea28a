package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const rbacModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj
`

// Enforcer answers permission checks for role names from a casbin policy
// seeded with RolePermissions and RoleInherits.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(grants map[string][]string, inherits map[string][]string) (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	for role, perms := range grants {
		for _, perm := range perms {
			if _, err := e.AddPolicy(subject(role), perm); err != nil {
				return nil, fmt.Errorf("grant %s to %s: %w", perm, role, err)
			}
		}
	}
	for role, parents := range inherits {
		for _, parent := range parents {
			if _, err := e.AddGroupingPolicy(subject(role), subject(parent)); err != nil {
				return nil, fmt.Errorf("inherit %s from %s: %w", role, parent, err)
			}
		}
	}
	return &Enforcer{enforcer: e}, nil
}

func NewDefaultEnforcer() (*Enforcer, error) {
	return NewEnforcer(RolePermissions, RoleInherits)
}

func (e *Enforcer) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	if strings.TrimSpace(roleName) == "" {
		return false, nil
	}
	return e.enforcer.Enforce(subject(roleName), permission)
}

func subject(role string) string {
	return "role:" + strings.ToLower(strings.TrimSpace(role))
}
