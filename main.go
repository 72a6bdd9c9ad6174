package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-classify/auth"
	"github.com/krishkalaria12/snap-classify/classifier"
	"github.com/krishkalaria12/snap-classify/config"
	"github.com/krishkalaria12/snap-classify/database"
	"github.com/krishkalaria12/snap-classify/events"
	handler "github.com/krishkalaria12/snap-classify/handlers"
	"github.com/krishkalaria12/snap-classify/images"
	"github.com/krishkalaria12/snap-classify/jobs"
	"github.com/krishkalaria12/snap-classify/logger"
	"github.com/krishkalaria12/snap-classify/models"
	"github.com/krishkalaria12/snap-classify/router"
	"github.com/krishkalaria12/snap-classify/storage"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("failed to close the database connection", zap.Error(err))
		}
	}()

	// Run migrations
	if err := database.Migrate(db, &models.User{}, &models.Blob{}, &models.Image{}); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	backend, err := newBackend(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize storage backend", logger.SourceStorage, zap.Error(err))
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}

	model, err := classifier.New(ctx, cfg.Classifier)
	if err != nil {
		logger.Fatal("failed to initialize classifier", logger.SourceClassifier, zap.Error(err))
	}

	storageService := storage.NewService(db, backend, cfg.Storage, cfg.Auth.JWTSecret)
	hub := events.NewHub()

	dispatcher, err := newDispatcher(cfg.Queue)
	if err != nil {
		logger.Fatal("failed to initialize job dispatcher", logger.SourceQueue, zap.Error(err))
	}
	store := images.NewStore(db, storageService, dispatcher, hub)

	// consume only once the store the worker writes through exists
	if err := dispatcher.Start(jobs.NewWorker(store, model).Handle); err != nil {
		logger.Fatal("failed to start job dispatcher", logger.SourceQueue, zap.Error(err))
	}

	authService := auth.NewService(db, cfg.Auth)
	h := handler.New(authService, storageService, store, hub, handler.Options{
		DefaultPrompt:  config.DefaultPrompt,
		CookieDuration: cfg.Auth.CookieDuration,
		SecureCookie:   cfg.Auth.SecureCookie,
	})

	app := fiber.New(fiber.Config{
		AppName:   "snap-classify",
		BodyLimit: cfg.HTTP.BodyLimit,
	})
	router.SetupRoutes(app, h, authService, cfg.HTTP.AllowOrigins)

	go func() {
		logger.Info("server is listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(":" + cfg.HTTP.Port); err != nil {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// ends open event streams so shutdown does not wait on them
	hub.Close()

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("failed to shut down server", zap.Error(err))
	}
	if err := dispatcher.Close(); err != nil {
		logger.Error("failed to close job dispatcher", logger.SourceQueue, zap.Error(err))
	}
}

func newBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "minio":
		return storage.NewMinioBackend(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.Bucket, cfg.MinioUseSSL, cfg.DownloadURLTTL)
	default:
		return storage.NewGCSBackend(ctx, cfg.Bucket, cfg.GCSSigningEmail, cfg.GCSSigningKey, cfg.DownloadURLTTL)
	}
}

func newDispatcher(cfg config.QueueConfig) (jobs.Dispatcher, error) {
	switch cfg.Driver {
	case "amqp":
		return jobs.NewAMQPDispatcher(cfg.AMQPURL, cfg.Name)
	default:
		return jobs.NewMemoryDispatcher(), nil
	}
}
