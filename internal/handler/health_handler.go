package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-portal-api/internal/config"
	"github.com/noah-isme/campus-portal-api/internal/utils"
)

const healthProbeTimeout = 2 * time.Second

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Store       string    `json:"store"`
}

// StoreProbe checks that the collection backend answers.
type StoreProbe func(ctx context.Context) error

// HealthCheck returns a handler that reports application health information. probe may be nil.
func HealthCheck(cfg config.Config, probe StoreProbe) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Store:       cfg.StoreDriver,
		}

		if probe != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), healthProbeTimeout)
			defer cancel()
			if err := probe(ctx); err != nil {
				payload.Status = "degraded"
				return utils.SendFailure(c, fiber.StatusServiceUnavailable, "store unavailable", payload)
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
