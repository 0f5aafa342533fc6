package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-portal-api/internal/session"
	"github.com/noah-isme/campus-portal-api/internal/utils"
)

// RequireRole admits only sessions bound by JWTProtected whose role is one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := session.NormalizeRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		actor := ActorFromContext(c)
		if !actor.Authenticated() {
			return utils.SendError(c, fiber.StatusUnauthorized, "session required")
		}
		if _, ok := allowed[session.NormalizeRole(actor.Role)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
