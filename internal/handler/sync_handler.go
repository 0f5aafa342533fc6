package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/middleware"
	"github.com/noah-isme/campus-portal-api/internal/service"
	"github.com/noah-isme/campus-portal-api/internal/session"
	"github.com/noah-isme/campus-portal-api/internal/utils"
)

const syncWriteTimeout = 10 * time.Second

// SyncHandler serves raw collection snapshots and keeps websocket views bound to them.
type SyncHandler struct {
	service service.SyncService
	logger  zerolog.Logger
}

// NewSyncHandler constructs a sync handler.
func NewSyncHandler(service service.SyncService, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		service: service,
		logger:  logger.With().Str("component", "sync_handler").Logger(),
	}
}

// RegisterCollections wires the snapshot endpoint. Restricted collections read the
// caller's session, so the optional session guard runs first.
func (h *SyncHandler) RegisterCollections(router fiber.Router, guards Guards) {
	router.Get("/:key", guards.optional(), h.snapshot)
}

// RegisterStream wires the websocket stream. Access is decided before the upgrade.
func (h *SyncHandler) RegisterStream(router fiber.Router, guards Guards) {
	router.Use("/ws", guards.optional(), func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		key, ok := collection.ParseKey(c.Query("collection"))
		if !ok {
			return utils.SendError(c, fiber.StatusNotFound, service.ErrUnknownCollection.Error())
		}
		actor := middleware.ActorFromContext(c)
		if err := h.service.Authorize(actor, key); err != nil {
			return sendServiceError(c, h.logger, err, "failed to open stream")
		}
		c.Locals("sync_collection", key)
		c.Locals("sync_actor", actor)
		c.Locals("request_ctx", middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c)))
		return c.Next()
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *SyncHandler) snapshot(c *fiber.Ctx) error {
	key, ok := collection.ParseKey(c.Params("key"))
	if !ok {
		return utils.SendError(c, fiber.StatusNotFound, service.ErrUnknownCollection.Error())
	}

	snapshot, err := h.service.Snapshot(c.UserContext(), middleware.ActorFromContext(c), key)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load collection")
	}
	return utils.SendSuccess(c, "collection retrieved", snapshot)
}

func (h *SyncHandler) handleConnection(conn *websocket.Conn) {
	key, _ := conn.Locals("sync_collection").(collection.Key)
	actor, _ := conn.Locals("sync_actor").(session.Actor)
	viewID := strings.TrimSpace(conn.Query("view_id"))
	if viewID == "" {
		viewID = uuid.NewString()
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	logger := h.logger.With().Str("collection", key.String()).Str("view_id", viewID).Logger()
	out := newLatestValue()

	binding, err := h.service.Bind(ctx, actor, key, viewID, out.set)
	if err != nil {
		logger.Warn().Err(err).Msg("sync bind failed")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "bind failed"))
		_ = conn.Close()
		return
	}
	defer binding.Deactivate()

	logger.Info().Msg("sync websocket connected")

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sync websocket disconnected")
			return
		case <-out.ready:
			snapshot, ok := out.take()
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(syncWriteTimeout))
			if err := conn.WriteJSON(snapshot); err != nil {
				logger.Debug().Err(err).Msg("sync write failed")
				return
			}
		}
	}
}

// latestValue keeps only the newest pending snapshot so a slow socket never sees stale ones.
type latestValue struct {
	mu      sync.Mutex
	value   any
	pending bool
	ready   chan struct{}
}

func newLatestValue() *latestValue {
	return &latestValue{ready: make(chan struct{}, 1)}
}

func (l *latestValue) set(value any) {
	l.mu.Lock()
	l.value = value
	l.pending = true
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *latestValue) take() (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pending {
		return nil, false
	}
	l.pending = false
	return l.value, true
}
