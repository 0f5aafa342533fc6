package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header names shared with clients.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderViewID        = "X-View-ID"
)

const (
	correlationLocalKey = "correlation_id"
	viewLocalKey        = "view_id"
)

type correlationCtxKey struct{}

// CorrelationID tags every request with X-Correlation-ID, reusing X-Request-ID or minting a
// uuid when the client sent neither. The id is echoed back and carried on the user context.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := firstHeader(c, HeaderCorrelationID, fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(correlationLocalKey, id)
		c.Set(HeaderCorrelationID, id)
		c.SetUserContext(ContextWithCorrelation(c.UserContext(), id))
		return c.Next()
	}
}

// ViewID records the client view a request originates from, so change notifications for its
// own mutations are not echoed back to it.
func ViewID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if view := firstHeader(c, HeaderViewID); view != "" {
			c.Locals(viewLocalKey, view)
		}
		return c.Next()
	}
}

// GetCorrelationID returns the correlation id of the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if id := localString(c, correlationLocalKey); id != "" {
		return id
	}
	if c == nil {
		return ""
	}
	return CorrelationFromContext(c.UserContext())
}

// GetViewID returns the originating view of the active request, if the client sent one.
func GetViewID(c *fiber.Ctx) string {
	return localString(c, viewLocalKey)
}

// ContextWithCorrelation returns ctx carrying id. Blank ids leave ctx unchanged.
func ContextWithCorrelation(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationCtxKey{}, id)
}

// CorrelationFromContext extracts the id stored by ContextWithCorrelation.
func CorrelationFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationCtxKey{}).(string)
	return id
}

func firstHeader(c *fiber.Ctx, names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(c.Get(name)); value != "" {
			return value
		}
	}
	return ""
}

func localString(c *fiber.Ctx, key string) string {
	if c == nil {
		return ""
	}
	value, _ := c.Locals(key).(string)
	return value
}
