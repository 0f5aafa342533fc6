package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/middleware"
	"github.com/noah-isme/campus-portal-api/internal/service"
	"github.com/noah-isme/campus-portal-api/internal/utils"
)

var errInvalidRevision = errors.New("invalid If-Match revision")

// mutationOptions reads the originating view and the optional client revision.
func mutationOptions(c *fiber.Ctx) (collection.MutationOptions, error) {
	opts := collection.MutationOptions{Origin: middleware.GetViewID(c)}

	raw := strings.Trim(strings.TrimSpace(c.Get(fiber.HeaderIfMatch)), `"`)
	if raw == "" || raw == "*" {
		return opts, nil
	}
	revision, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || revision < 0 {
		return opts, errInvalidRevision
	}
	opts.ExpectedRevision = &revision
	return opts, nil
}

func setRevision(c *fiber.Ctx, revision int64) {
	c.Set(fiber.HeaderETag, strconv.Quote(strconv.FormatInt(revision, 10)))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// sendServiceError maps domain errors onto HTTP statuses.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	switch {
	case isValidationError(err),
		errors.Is(err, service.ErrUploadMissing),
		errors.Is(err, service.ErrUploadEmpty),
		errors.Is(err, service.ErrUploadTypeNotAllowed),
		errors.Is(err, service.ErrDiscussionEmpty),
		errors.Is(err, service.ErrDisplayNameRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrSessionRequired):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, collection.ErrRecordNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrUnknownCollection):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, collection.ErrStaleRevision),
		errors.Is(err, service.ErrStudentExists):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, collection.ErrCollectionFull),
		errors.Is(err, collection.ErrQuotaExceeded):
		return utils.SendError(c, fiber.StatusInsufficientStorage, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}

// Guards are the middleware chains a handler attaches to protected routes.
type Guards struct {
	Session  fiber.Handler
	Admin    fiber.Handler
	Optional fiber.Handler
}

func (g Guards) optional() fiber.Handler {
	if g.Optional == nil {
		return passThrough
	}
	return g.Optional
}

func (g Guards) session() fiber.Handler {
	if g.Session == nil {
		return passThrough
	}
	return g.Session
}

func (g Guards) admin() []fiber.Handler {
	admin := g.Admin
	if admin == nil {
		admin = passThrough
	}
	return []fiber.Handler{g.session(), admin}
}

func passThrough(c *fiber.Ctx) error { return c.Next() }

func adminRoute(g Guards, h fiber.Handler) []fiber.Handler {
	return append(g.admin(), h)
}
