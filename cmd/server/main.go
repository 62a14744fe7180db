// Package main is the entry point for the Profile API
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/profileapi/internal/api"
	"github.com/nsvirk/profileapi/internal/api/middleware"
	"github.com/nsvirk/profileapi/internal/config"
	"github.com/nsvirk/profileapi/internal/mailer"
	"github.com/nsvirk/profileapi/internal/repository"
	"github.com/nsvirk/profileapi/internal/service"
	"github.com/nsvirk/profileapi/internal/storage"
	"github.com/nsvirk/profileapi/pkg/utils/auditlog"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
)

func main() {
	// Load configuration
	cfg, err := config.Get()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Print the configuration
	fmt.Println(cfg.String())

	// Connect to Postgres
	db, err := repository.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	// Connect Redis
	redisClient, err := repository.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Init logger
	if err := zaplogger.InitLogger(db); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zaplogger.Sync()
	zaplogger.SetLogLevel(cfg.ServerLogLevel)

	zaplogger.Info(cfg.APIName + " - " + cfg.APIVersion + " initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit log
	audit, err := auditlog.New(db)
	if err != nil {
		zaplogger.Fatal("Failed to initialize audit log", zaplogger.Fields{"error": err.Error()})
	}

	// Public directory served under /public
	if err := os.MkdirAll(cfg.PublicDir, 0o755); err != nil {
		zaplogger.Fatal("Failed to create public directory", zaplogger.Fields{"error": err.Error()})
	}

	// Avatar storage
	avatars, err := newAvatarStore(ctx, cfg)
	if err != nil {
		zaplogger.Fatal("Failed to initialize avatar storage", zaplogger.Fields{"error": err.Error()})
	}

	// Stores
	users := repository.NewUserRepository(db)
	sessions := repository.NewCachedSessionStore(
		repository.NewSessionRepository(db, cfg.SessionTTL),
		redisClient,
		cfg.SessionCacheTTL,
	)

	// Services
	m := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPEmail,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	sessionService := service.NewSessionService(users, sessions, m, audit)
	userService := service.NewUserService(users, sessions, avatars, audit, cfg.AvatarMaxBytes)

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Setup middleware
	middleware.SetupMiddleware(e, cfg.ServerBodyLimit)

	// Setup routes
	api.SetupRoutes(e, cfg, api.Dependencies{
		Sessions:       sessions,
		Users:          users,
		SessionService: sessionService,
		UserService:    userService,
	})

	// Setup and start cron jobs
	cronService := service.NewCronService(cfg, sessionService)
	cronService.Start()
	defer cronService.Stop()

	// Relay users.blocked notifications
	publishService := service.NewPublishService(redisClient, sessionService, cfg.PostgresDsn)
	go func() {
		if err := publishService.ListenUserBlocked(ctx); err != nil {
			zaplogger.Error("User blocked listener stopped", zaplogger.Fields{"error": err.Error()})
		}
	}()

	// Start the server
	startServer(ctx, e, cfg)
}

// newAvatarStore picks the avatar backend from config
func newAvatarStore(ctx context.Context, cfg *config.Config) (storage.AvatarStore, error) {
	switch cfg.AvatarStorage {
	case "minio":
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
	case "local", "":
		publicURL := strings.TrimSuffix(cfg.BaseURL, "/") + "/public/"
		return storage.NewLocalStore(cfg.PublicDir, publicURL)
	default:
		return nil, fmt.Errorf("unknown avatar storage %q", cfg.AvatarStorage)
	}
}

// startServer starts the Echo server and shuts it down when ctx is done
func startServer(ctx context.Context, e *echo.Echo, cfg *config.Config) {
	port := cfg.ServerPort
	if port == "" {
		port = "3007"
	}

	go func() {
		zaplogger.Info("SERVER STARTED ON PORT " + port)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zaplogger.Fatal("Server stopped", zaplogger.Fields{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	zaplogger.Info("SHUTTING DOWN SERVER")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zaplogger.Error("Server shutdown failed", zaplogger.Fields{"error": err.Error()})
	}
}
