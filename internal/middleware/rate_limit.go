package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/campus-portal-api/internal/utils"
)

// RateLimitPolicy describes one named request budget.
type RateLimitPolicy struct {
	Name   string
	Max    int
	Window time.Duration
	// SkipFailed leaves rejected requests (status >= 400) out of the budget.
	SkipFailed bool
}

// RateLimit limits requests per session, falling back to the client IP for anonymous callers.
// Budgets are kept in process memory.
func RateLimit(policy RateLimitPolicy) fiber.Handler {
	if policy.Max <= 0 {
		policy.Max = 10
	}
	if policy.Window <= 0 {
		policy.Window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:                policy.Max,
		Expiration:         policy.Window,
		SkipFailedRequests: policy.SkipFailed,
		KeyGenerator: func(c *fiber.Ctx) string {
			return rateLimitKey(policy.Name, c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests")
		},
	})
}

func rateLimitKey(name string, c *fiber.Ctx) string {
	if id := ActorFromContext(c).ID; id != "" {
		return name + ":session:" + id
	}
	return name + ":ip:" + c.IP()
}
