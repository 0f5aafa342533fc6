package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/config"
	"github.com/noah-isme/campus-portal-api/internal/dto"
	"github.com/noah-isme/campus-portal-api/internal/handler"
	"github.com/noah-isme/campus-portal-api/internal/middleware"
	"github.com/noah-isme/campus-portal-api/internal/models"
	"github.com/noah-isme/campus-portal-api/internal/notifier"
	"github.com/noah-isme/campus-portal-api/internal/router"
	"github.com/noah-isme/campus-portal-api/internal/service"
	"github.com/noah-isme/campus-portal-api/internal/session"
	"github.com/noah-isme/campus-portal-api/pkg/supabase"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type portal struct {
	app      *fiber.App
	sessions service.SessionService
	hub      *notifier.Hub
	mini     *miniredis.Miniredis
}

type portalOptions struct {
	booksCapacity int
	supabaseURL   string
	storeProbe    handler.StoreProbe
}

func newPortal(t *testing.T, opts portalOptions) *portal {
	t.Helper()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.New(io.Discard)
	store := collection.NewRedisStore(client, "test", 0)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := notifier.NewHub(logger)
	require.NoError(t, hub.Start(ctx))

	validate := validator.New(validator.WithRequiredStructEnabled())
	uploadCodec := collection.MustCodec[models.UploadRecord]("upload_record", collection.UploadRecordSchema)
	messageCodec := collection.MustCodec[models.DiscussionMessage]("discussion_message", collection.DiscussionMessageSchema)
	studentCodec := collection.MustCodec[models.StudentRequest]("student_request", collection.StudentRequestSchema)

	books := collection.New(collection.KeyBooks, store, uploadCodec, logger)
	messages := collection.New(collection.KeyDiscussion, store, messageCodec, logger)
	pending := collection.New(collection.KeyStudentRequests, store, studentCodec, logger)
	approved := collection.New(collection.KeyApprovedStudents, store, studentCodec, logger)

	encoder := service.NewPayloadEncoder(1, nil, logger)
	sessions := service.NewSessionService("test-secret", time.Hour, validate, logger)

	registry := service.NewSyncRegistry(hub, logger)
	service.RegisterCollection(registry, books)
	service.RegisterCollection(registry, messages)
	service.RegisterCollection(registry, pending, service.AdminOnly())
	service.RegisterCollection(registry, approved, service.AdminOnly())

	probe := opts.storeProbe
	if probe == nil {
		probe = func(ctx context.Context) error {
			_, err := store.Load(ctx, collection.KeyBooks)
			return err
		}
	}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "portal-test", AppEnv: "test", StoreDriver: config.StoreDriverRedis}, router.Dependencies{
		BooksHandler:      handler.NewLibraryHandler(service.NewLibraryService(collection.NewMutator(books, hub, logger), encoder, validate, opts.booksCapacity, logger), logger),
		DiscussionHandler: handler.NewDiscussionHandler(service.NewDiscussionService(collection.NewMutator(messages, hub, logger), validate, logger), logger),
		StudentHandler:    handler.NewStudentHandler(service.NewStudentService(collection.NewMutator(pending, hub, logger), collection.NewMutator(approved, hub, logger), validate, logger), logger),
		SessionHandler:    handler.NewSessionHandler(sessions, logger),
		SyncHandler:       handler.NewSyncHandler(registry.Service(), logger),
		BooksProxyHandler: handler.NewBooksProxyHandler(service.NewBooksService(supabase.NewClient(opts.supabaseURL, "anon", time.Second), logger), logger),
		StoreProbe:        probe,
		JWTMiddleware:     middleware.JWTProtected(sessions),
		OptionalSession:   middleware.OptionalSession(sessions),
		AdminMiddleware:   middleware.RequireRole(session.RoleAdmin),
	})

	return &portal{app: app, sessions: sessions, hub: hub, mini: mini}
}

func (p *portal) token(t *testing.T, role, name string) string {
	t.Helper()
	started, err := p.sessions.Start(dto.SessionCreateRequest{Role: role, Name: name})
	require.NoError(t, err)
	return started.Token
}

func (p *portal) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := p.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func jsonRequest(t *testing.T, method, path, token string, payload any) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func uploadRequest(t *testing.T, path, token, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func uploadFields() map[string]string {
	return map[string]string{
		"category":   "Physics",
		"uploader":   "Prof. Rao",
		"department": models.DepartmentBSc,
		"year":       models.YearFirst,
	}
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func decodeResponse(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

var errStoreDown = errors.New("store down")
