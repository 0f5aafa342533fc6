package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-portal-api/internal/session"
	"github.com/noah-isme/campus-portal-api/internal/utils"
)

const actorLocalKey = "session_actor"

// TokenParser verifies a session token and returns the actor it encodes.
type TokenParser interface {
	Parse(token string) (session.Actor, error)
}

// JWTProtected rejects requests without a valid bearer session token.
func JWTProtected(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		actor, err := parser.Parse(token)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		bindActor(c, actor)
		return c.Next()
	}
}

// OptionalSession binds the actor when a valid token is present and continues anonymously otherwise.
// Websocket upgrades may carry the token in the access_token query parameter.
func OptionalSession(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := sessionToken(c); ok {
			if actor, err := parser.Parse(token); err == nil {
				bindActor(c, actor)
			}
		}
		return c.Next()
	}
}

// ActorFromContext returns the actor bound by JWTProtected, or the zero actor.
func ActorFromContext(c *fiber.Ctx) session.Actor {
	if actor, ok := c.Locals(actorLocalKey).(session.Actor); ok {
		return actor
	}
	return session.Actor{}
}

func bindActor(c *fiber.Ctx, actor session.Actor) {
	c.Locals(actorLocalKey, actor)
}

func sessionToken(c *fiber.Ctx) (string, bool) {
	if token, ok := bearerToken(c.Get(fiber.HeaderAuthorization)); ok {
		return token, true
	}
	if !strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket") {
		return "", false
	}
	token := strings.TrimSpace(c.Query("access_token"))
	return token, token != ""
}

func bearerToken(authorization string) (string, bool) {
	const bearer = "bearer "
	authorization = strings.TrimSpace(authorization)
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(bearer):])
	return token, token != ""
}
