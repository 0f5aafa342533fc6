package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/internal/collection"
	"github.com/noah-isme/campus-portal-api/internal/config"
	"github.com/noah-isme/campus-portal-api/internal/database"
	"github.com/noah-isme/campus-portal-api/internal/handler"
	"github.com/noah-isme/campus-portal-api/internal/middleware"
	"github.com/noah-isme/campus-portal-api/internal/models"
	"github.com/noah-isme/campus-portal-api/internal/notifier"
	"github.com/noah-isme/campus-portal-api/internal/router"
	"github.com/noah-isme/campus-portal-api/internal/service"
	"github.com/noah-isme/campus-portal-api/internal/session"
	cloud "github.com/noah-isme/campus-portal-api/pkg/cloudinary"
	"github.com/noah-isme/campus-portal-api/pkg/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	store, err := openStore(ctx, cfg, redisClient, logger)
	if err != nil {
		log.Fatalf("failed to open collection store: %v", err)
	}

	hubOptions := []notifier.Option{}
	if redisClient != nil {
		hubOptions = append(hubOptions, notifier.WithBridge(notifier.NewRedisBridge(redisClient, cfg.ChannelBase, logger)))
	}
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		hubOptions = append(hubOptions, notifier.WithBridge(notifier.NewNATSBridge(natsConn, cfg.ChannelBase, logger)))
	}

	hub := notifier.NewHub(logger, hubOptions...)
	if err := hub.Start(ctx); err != nil {
		log.Fatalf("failed to start change notifier: %v", err)
	}

	var mirror service.FileStorage
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		mirror = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	uploadCodec := collection.MustCodec[models.UploadRecord]("upload_record", collection.UploadRecordSchema)
	messageCodec := collection.MustCodec[models.DiscussionMessage]("discussion_message", collection.DiscussionMessageSchema)
	studentCodec := collection.MustCodec[models.StudentRequest]("student_request", collection.StudentRequestSchema)

	books := collection.New(collection.KeyBooks, store, uploadCodec, logger)
	notes := collection.New(collection.KeyNotes, store, uploadCodec, logger)
	pyqs := collection.New(collection.KeyPYQs, store, uploadCodec, logger)
	messages := collection.New(collection.KeyDiscussion, store, messageCodec, logger)
	pending := collection.New(collection.KeyStudentRequests, store, studentCodec, logger)
	approved := collection.New(collection.KeyApprovedStudents, store, studentCodec, logger)

	encoder := service.NewPayloadEncoder(cfg.UploadMaxMB, mirror, logger)

	booksService := service.NewLibraryService(collection.NewMutator(books, hub, logger), encoder, validate, cfg.BooksMaxRecords, logger)
	notesService := service.NewLibraryService(collection.NewMutator(notes, hub, logger), encoder, validate, cfg.NotesMaxRecords, logger)
	pyqsService := service.NewLibraryService(collection.NewMutator(pyqs, hub, logger), encoder, validate, cfg.PYQsMaxRecords, logger)
	discussionService := service.NewDiscussionService(collection.NewMutator(messages, hub, logger), validate, logger)
	studentService := service.NewStudentService(collection.NewMutator(pending, hub, logger), collection.NewMutator(approved, hub, logger), validate, logger)
	sessionService := service.NewSessionService(cfg.JWTSecret, cfg.SessionTTL, validate, logger)
	booksProxyService := service.NewBooksService(supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.UpstreamTimeout), logger)

	registry := service.NewSyncRegistry(hub, logger)
	service.RegisterCollection(registry, books)
	service.RegisterCollection(registry, notes)
	service.RegisterCollection(registry, pyqs)
	service.RegisterCollection(registry, messages)
	service.RegisterCollection(registry, pending, service.AdminOnly())
	service.RegisterCollection(registry, approved, service.AdminOnly())

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins, AccessLog: cfg.AccessLog})
	router.Register(app, cfg, router.Dependencies{
		BooksHandler:      handler.NewLibraryHandler(booksService, logger),
		NotesHandler:      handler.NewLibraryHandler(notesService, logger),
		PYQsHandler:       handler.NewLibraryHandler(pyqsService, logger),
		DiscussionHandler: handler.NewDiscussionHandler(discussionService, logger),
		StudentHandler:    handler.NewStudentHandler(studentService, logger),
		SessionHandler:    handler.NewSessionHandler(sessionService, logger),
		SyncHandler:       handler.NewSyncHandler(registry.Service(), logger),
		BooksProxyHandler: handler.NewBooksProxyHandler(booksProxyService, logger),
		StoreProbe: func(ctx context.Context) error {
			_, err := store.Load(ctx, collection.KeyBooks)
			return err
		},
		JWTMiddleware:   middleware.JWTProtected(sessionService),
		OptionalSession: middleware.OptionalSession(sessionService),
		AdminMiddleware: middleware.RequireRole(session.RoleAdmin),
		RateLimiter:     middleware.RateLimit(middleware.RateLimitPolicy{Name: "portal", Max: 30, Window: time.Minute, SkipFailed: true}),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Str("store", cfg.StoreDriver).Str("node_id", hub.NodeID()).Msg("portal api started")

	waitForShutdown(app, cancel)
}

func openStore(ctx context.Context, cfg config.Config, redisClient *redis.Client, logger zerolog.Logger) (collection.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis store selected without a redis connection")
		}
		return collection.NewRedisStore(redisClient, cfg.ChannelBase, cfg.SlotMaxBytes), nil
	case config.StoreDriverSQLite:
		db, err := database.OpenGorm(database.DialectSQLite, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, collection.NewGormStore(db, cfg.SlotMaxBytes))
	default:
		db, err := database.OpenGorm(database.DialectPostgres, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, collection.NewGormStore(db, cfg.SlotMaxBytes))
	}
}

func migrated(ctx context.Context, store *collection.GormStore) (collection.Store, error) {
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate collection slots: %w", err)
	}
	return store, nil
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	stopBackground()

	log.Println("server stopped")
}
