package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-portal-api/internal/session"
)

func roleApp(actor *session.Actor) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if actor != nil {
			bindActor(c, *actor)
		}
		return c.Next()
	})
	app.Use(RequireRole(session.RoleAdmin))
	app.Get("/admin", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func roleStatus(t *testing.T, actor *session.Actor) int {
	t.Helper()
	resp, err := roleApp(actor).Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRequireRoleAllowsAuthorizedRoles(t *testing.T) {
	require.Equal(t, fiber.StatusOK, roleStatus(t, &session.Actor{ID: "s-1", Role: " Admin "}))
}

func TestRequireRoleRejectsUnauthorizedRoles(t *testing.T) {
	require.Equal(t, fiber.StatusForbidden, roleStatus(t, &session.Actor{ID: "s-2", Role: session.RoleStudent}))
	require.Equal(t, fiber.StatusUnauthorized, roleStatus(t, nil))
}
