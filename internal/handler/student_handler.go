package handler

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/middleware"
	"github.com/noah-isme/campus-portal-api/internal/service"
	"github.com/noah-isme/campus-portal-api/internal/utils"
)

// StudentHandler exposes registration and the admin approval workflow.
type StudentHandler struct {
	service service.StudentService
	logger  zerolog.Logger
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(service service.StudentService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		service: service,
		logger:  logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register wires student routes. Registration is public; everything else is admin only.
func (h *StudentHandler) Register(router fiber.Router, guards Guards) {
	router.Post("/requests", h.register)
	router.Get("/requests", adminRoute(guards, h.listPending)...)
	router.Post("/requests/:email/approve", adminRoute(guards, h.approve)...)
	router.Post("/requests/:email/decline", adminRoute(guards, h.decline)...)
	router.Get("/approved", adminRoute(guards, h.listApproved)...)
	router.Delete("/approved/:email", adminRoute(guards, h.remove)...)
}

func (h *StudentHandler) register(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.StudentRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	student, err := h.service.Register(c.UserContext(), opts, req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to register student")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registration submitted for approval", student)
}

func (h *StudentHandler) listPending(c *fiber.Ctx) error {
	var filter dto.StudentFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.ListPending(c.UserContext(), middleware.ActorFromContext(c), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load pending students")
	}
	setRevision(c, result.Revision)
	return utils.SendSuccess(c, "pending students retrieved", result)
}

func (h *StudentHandler) listApproved(c *fiber.Ctx) error {
	var filter dto.StudentFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.ListApproved(c.UserContext(), middleware.ActorFromContext(c), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load approved students")
	}
	setRevision(c, result.Revision)
	return utils.SendSuccess(c, "approved students retrieved", result)
}

func (h *StudentHandler) approve(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	student, err := h.service.Approve(c.UserContext(), middleware.ActorFromContext(c), opts, emailParam(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to approve student")
	}
	return utils.SendSuccess(c, "student approved", student)
}

func (h *StudentHandler) decline(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Decline(c.UserContext(), middleware.ActorFromContext(c), opts, emailParam(c)); err != nil {
		return sendServiceError(c, h.logger, err, "failed to decline student")
	}
	return utils.SendSuccess(c, "registration declined", nil)
}

func (h *StudentHandler) remove(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Remove(c.UserContext(), middleware.ActorFromContext(c), opts, emailParam(c)); err != nil {
		return sendServiceError(c, h.logger, err, "failed to remove student")
	}
	return utils.SendSuccess(c, "student removed", nil)
}

func emailParam(c *fiber.Ctx) string {
	raw := c.Params("email")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
