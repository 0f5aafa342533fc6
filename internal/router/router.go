package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-portal-api/internal/config"
	"github.com/noah-isme/campus-portal-api/internal/handler"
	"github.com/noah-isme/campus-portal-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	BooksHandler      *handler.LibraryHandler
	NotesHandler      *handler.LibraryHandler
	PYQsHandler       *handler.LibraryHandler
	DiscussionHandler *handler.DiscussionHandler
	StudentHandler    *handler.StudentHandler
	SessionHandler    *handler.SessionHandler
	SyncHandler       *handler.SyncHandler
	BooksProxyHandler *handler.BooksProxyHandler
	StoreProbe        handler.StoreProbe
	JWTMiddleware     fiber.Handler
	OptionalSession   fiber.Handler
	AdminMiddleware   fiber.Handler
	RateLimiter       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.StoreProbe))

	guards := handler.Guards{Session: deps.JWTMiddleware, Admin: deps.AdminMiddleware, Optional: deps.OptionalSession}

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/session"), guards, deps.RateLimiter)
	}

	if deps.SyncHandler != nil {
		deps.SyncHandler.RegisterCollections(api.Group("/collections"), guards)
		deps.SyncHandler.RegisterStream(api.Group("/sync"), guards)
	}

	// Shared upload collections
	if deps.BooksHandler != nil {
		deps.BooksHandler.Register(api.Group("/books"), guards)
	}
	if deps.NotesHandler != nil {
		deps.NotesHandler.Register(api.Group("/notes"), guards)
	}
	if deps.PYQsHandler != nil {
		deps.PYQsHandler.Register(api.Group("/pyqs"), guards)
	}

	if deps.DiscussionHandler != nil {
		deps.DiscussionHandler.Register(api.Group("/discussion"), guards)
	}

	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(api.Group("/students"), guards)
	}

	// External books catalogue keeps its own path and envelope.
	if deps.BooksProxyHandler != nil {
		if deps.OptionalSession != nil {
			app.Use("/api/books", deps.OptionalSession)
		}
		deps.BooksProxyHandler.Register(app, "/api/books", deps.RateLimiter)
	}
}
