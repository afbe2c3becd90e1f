package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// Resources guarded by route-level permissions.
const (
	ResourceTickets    = "tickets"
	ResourceCategories = "categories"
	ResourceUsers      = "users"
	ResourceProfile    = "profile"
)

// Actions paired with the resources above.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionVote   = "vote"
	ActionList   = "list"
	ActionManage = "manage"
	ActionStats  = "stats"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Grants are listed against the lowest role that holds them; higher roles inherit.
var defaultPolicies = [][]string{
	{string(domain.RoleEndUser), ResourceTickets, ActionRead},
	{string(domain.RoleEndUser), ResourceTickets, ActionWrite},
	{string(domain.RoleEndUser), ResourceTickets, ActionVote},
	{string(domain.RoleEndUser), ResourceCategories, ActionRead},
	{string(domain.RoleEndUser), ResourceProfile, ActionRead},
	{string(domain.RoleEndUser), ResourceProfile, ActionWrite},
	{string(domain.RoleSupportAgent), ResourceUsers, ActionList},
	{string(domain.RoleAdmin), ResourceCategories, ActionManage},
	{string(domain.RoleAdmin), ResourceUsers, ActionManage},
	{string(domain.RoleAdmin), ResourceUsers, ActionStats},
}

var roleHierarchy = [][]string{
	{string(domain.RoleAdmin), string(domain.RoleSupportAgent)},
	{string(domain.RoleSupportAgent), string(domain.RoleEndUser)},
}

// Authorizer answers role allow-list questions with a casbin enforcer.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// NewAuthorizer loads the RBAC model and the built-in policy set.
func NewAuthorizer() (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("add policies: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicies(roleHierarchy); err != nil {
		return nil, fmt.Errorf("add role hierarchy: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

// Allowed reports whether role may perform action on resource.
func (a *Authorizer) Allowed(role domain.Role, resource, action string) (bool, error) {
	return a.enforcer.Enforce(string(role), resource, action)
}

// RequirePermission rejects callers whose role lacks the permission. It must
// run after the authentication middleware.
func (a *Authorizer) RequirePermission(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		allowed, err := a.Allowed(principal.User.Role, resource, action)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if !allowed {
			return apperrors.NewForbidden("insufficient permissions")
		}
		return c.Next()
	}
}
