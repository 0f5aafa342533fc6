package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/middleware"
	"github.com/noah-isme/campus-portal-api/internal/service"
	"github.com/noah-isme/campus-portal-api/internal/utils"
)

// SessionHandler starts sessions and reports the current one.
type SessionHandler struct {
	service service.SessionService
	logger  zerolog.Logger
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(service service.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register wires session routes. limiter may be nil.
func (h *SessionHandler) Register(router fiber.Router, guards Guards, limiter fiber.Handler) {
	if limiter == nil {
		limiter = passThrough
	}
	router.Post("", limiter, h.start)
	router.Get("", guards.session(), h.current)
}

func (h *SessionHandler) start(c *fiber.Ctx) error {
	var req dto.SessionCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Start(req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to start session")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session started", result)
}

func (h *SessionHandler) current(c *fiber.Ctx) error {
	actor := middleware.ActorFromContext(c)
	return utils.SendSuccess(c, "session active", fiber.Map{
		"session_id": actor.ID,
		"role":       actor.Role,
		"name":       actor.Name,
		"logged_in":  actor.Authenticated(),
	})
}
