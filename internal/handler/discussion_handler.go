package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/middleware"
	"github.com/noah-isme/campus-portal-api/internal/service"
	"github.com/noah-isme/campus-portal-api/internal/utils"
)

// DiscussionHandler exposes the discussion board.
type DiscussionHandler struct {
	service service.DiscussionService
	logger  zerolog.Logger
}

// NewDiscussionHandler constructs a discussion handler.
func NewDiscussionHandler(service service.DiscussionService, logger zerolog.Logger) *DiscussionHandler {
	return &DiscussionHandler{
		service: service,
		logger:  logger.With().Str("component", "discussion_handler").Logger(),
	}
}

// Register wires discussion routes.
func (h *DiscussionHandler) Register(router fiber.Router, guards Guards) {
	router.Get("/messages", h.list)
	router.Post("/messages", guards.session(), h.post)
	router.Patch("/messages/:id/highlight", adminRoute(guards, h.toggleHighlight)...)
	router.Delete("/messages/:id", adminRoute(guards, h.delete)...)
	router.Get("/display-name", guards.session(), h.displayName)
	router.Put("/display-name", guards.session(), h.setDisplayName)
}

func (h *DiscussionHandler) list(c *fiber.Ctx) error {
	board, err := h.service.List(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load discussion")
	}
	setRevision(c, board.Revision)
	return utils.SendSuccess(c, "discussion retrieved", board)
}

func (h *DiscussionHandler) post(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.DiscussionPostRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	board, err := h.service.Post(c.UserContext(), middleware.ActorFromContext(c), opts, req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to post message")
	}
	setRevision(c, board.Revision)
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message posted", board)
}

func (h *DiscussionHandler) toggleHighlight(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	board, err := h.service.ToggleHighlight(c.UserContext(), middleware.ActorFromContext(c), opts, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update message")
	}
	setRevision(c, board.Revision)
	return utils.SendSuccess(c, "message updated", board)
}

func (h *DiscussionHandler) delete(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	board, err := h.service.Delete(c.UserContext(), middleware.ActorFromContext(c), opts, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete message")
	}
	setRevision(c, board.Revision)
	return utils.SendSuccess(c, "message deleted", board)
}

func (h *DiscussionHandler) displayName(c *fiber.Ctx) error {
	actor := middleware.ActorFromContext(c)
	name, err := h.service.GetDisplayName(c.UserContext(), actor.ID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load display name")
	}
	return utils.SendSuccess(c, "display name retrieved", fiber.Map{"name": name})
}

func (h *DiscussionHandler) setDisplayName(c *fiber.Ctx) error {
	var req dto.DisplayNameRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor := middleware.ActorFromContext(c)
	name, err := h.service.SetDisplayName(c.UserContext(), actor.ID, req.Name)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to save display name")
	}
	return utils.SendSuccess(c, "display name saved", fiber.Map{"name": name})
}
