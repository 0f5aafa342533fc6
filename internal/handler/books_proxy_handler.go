package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/service"
	"github.com/noah-isme/campus-portal-api/pkg/supabase"
)

const missingUpstreamConfig = "Missing SUPABASE_URL or SUPABASE_KEY env vars"

// BooksProxyHandler forwards the books catalogue endpoints to the external table. Its
// responses use {books}, {book} and {error} bodies instead of the API envelope.
type BooksProxyHandler struct {
	service service.BooksService
	logger  zerolog.Logger
}

// NewBooksProxyHandler constructs the proxy handler.
func NewBooksProxyHandler(service service.BooksService, logger zerolog.Logger) *BooksProxyHandler {
	return &BooksProxyHandler{
		service: service,
		logger:  logger.With().Str("component", "books_proxy_handler").Logger(),
	}
}

// Register wires the proxy on path. limiter guards inserts and may be nil.
func (h *BooksProxyHandler) Register(router fiber.Router, path string, limiter fiber.Handler) {
	if limiter == nil {
		limiter = passThrough
	}
	router.Get(path, h.list)
	router.Post(path, limiter, h.add)
	router.All(path, h.methodNotAllowed)
}

func (h *BooksProxyHandler) list(c *fiber.Ctx) error {
	books, err := h.service.List()
	if err != nil {
		return h.sendError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"books": books})
}

func (h *BooksProxyHandler) add(c *fiber.Ctx) error {
	payload := map[string]any{}
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}
	}

	book, err := h.service.Add(payload)
	if err != nil {
		return h.sendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"book": book})
}

func (h *BooksProxyHandler) methodNotAllowed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "Method not allowed"})
}

func (h *BooksProxyHandler) sendError(c *fiber.Ctx, err error) error {
	var upstream *supabase.UpstreamError
	switch {
	case errors.Is(err, service.ErrBookIncomplete):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing title or author"})
	case errors.Is(err, supabase.ErrNotConfigured):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": missingUpstreamConfig})
	case errors.As(err, &upstream):
		return c.Status(upstream.Status).JSON(fiber.Map{"error": upstream.Detail})
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("books proxy failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
