package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vuny-labs/marketplace-service/internal/domain"
)

// roleLevels is the fixed role ladder. Unknown roles fall back to guest.
var roleLevels = map[domain.Role]int{
	domain.RoleGuest:            0,
	domain.RoleMember:           1,
	domain.RolePrivilegedMember: 2,
	domain.RoleModerator:        3,
	domain.RoleSeniorModerator:  4,
	domain.RoleRoot:             5,
}

// levelRoles is the inverse mapping, used to walk the ladder downward.
var levelRoles = []domain.Role{
	domain.RoleGuest,
	domain.RoleMember,
	domain.RolePrivilegedMember,
	domain.RoleModerator,
	domain.RoleSeniorModerator,
	domain.RoleRoot,
}

// Level returns the ordinal rank of a role.
func Level(role domain.Role) int {
	return roleLevels[role]
}

// CanAct reports whether an actor may modify a target. The hierarchy is
// self-protecting: equal or higher targets are off limits.
func CanAct(actor, target domain.Role) bool {
	return Level(actor) > Level(target)
}

// MaxGrantable returns the highest role an actor may assign to someone else:
// one level below the actor's own.
func MaxGrantable(actor domain.Role) domain.Role {
	level := Level(actor)
	if level == 0 {
		return domain.RoleGuest
	}
	return levelRoles[level-1]
}

// RolesAtOrAbove returns every role ranked at least as high as min.
func RolesAtOrAbove(min domain.Role) []domain.Role {
	level := Level(min)
	if level >= len(levelRoles) {
		return nil
	}
	return append([]domain.Role{}, levelRoles[level:]...)
}

// KnownRole reports whether the role is part of the ladder.
func KnownRole(role domain.Role) bool {
	_, ok := roleLevels[role]
	return ok
}

// RequireAuthenticated ensures a principal was loaded by the middleware.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}

// RequireLevel ensures the principal's role is at least the given one.
func RequireLevel(min domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if Level(principal.Role) < Level(min) {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
