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

// LibraryHandler serves one upload collection (books, notes or PYQs).
type LibraryHandler struct {
	service service.LibraryService
	logger  zerolog.Logger
}

// NewLibraryHandler constructs a library handler.
func NewLibraryHandler(service service.LibraryService, logger zerolog.Logger) *LibraryHandler {
	return &LibraryHandler{
		service: service,
		logger:  logger.With().Str("component", "library_handler").Str("collection", service.Key().String()).Logger(),
	}
}

// Register wires the collection routes. Reads are public; mutations require an admin session.
func (h *LibraryHandler) Register(router fiber.Router, guards Guards) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", adminRoute(guards, h.create)...)
	router.Patch("/:id", adminRoute(guards, h.update)...)
	router.Delete("/:id", adminRoute(guards, h.delete)...)
}

func (h *LibraryHandler) list(c *fiber.Ctx) error {
	var filter dto.UploadFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load uploads")
	}
	setRevision(c, result.Revision)
	return utils.SendSuccess(c, "uploads retrieved", result)
}

func (h *LibraryHandler) get(c *fiber.Ctx) error {
	result, err := h.service.Get(c.UserContext(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load upload")
	}
	return utils.SendSuccess(c, "upload retrieved", result)
}

func (h *LibraryHandler) create(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.UploadCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid upload form")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrUploadMissing.Error())
	}

	result, err := h.service.Create(c.UserContext(), middleware.ActorFromContext(c), opts, req, file)
	if err != nil {
		return sendServiceError(c, h.logger, err, "upload failed")
	}
	setRevision(c, result.Revision)
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upload stored", result)
}

func (h *LibraryHandler) update(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.UploadUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Update(c.UserContext(), middleware.ActorFromContext(c), opts, strings.TrimSpace(c.Params("id")), req)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update upload")
	}
	setRevision(c, result.Revision)
	return utils.SendSuccess(c, "upload updated", result)
}

func (h *LibraryHandler) delete(c *fiber.Ctx) error {
	opts, err := mutationOptions(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	revision, err := h.service.Delete(c.UserContext(), middleware.ActorFromContext(c), opts, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete upload")
	}
	setRevision(c, revision)
	return utils.SendSuccess(c, "upload deleted", fiber.Map{"revision": revision})
}
