// Package main is the entry point for the MediaHost server.
// MediaHost is a self-hosted media upload and sharing service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/mediahost/internal/auth"
	"github.com/prn-tf/mediahost/internal/cache/memory"
	"github.com/prn-tf/mediahost/internal/config"
	"github.com/prn-tf/mediahost/internal/handler"
	"github.com/prn-tf/mediahost/internal/metrics"
	"github.com/prn-tf/mediahost/internal/pkg/crypto"
	"github.com/prn-tf/mediahost/internal/repository"
	"github.com/prn-tf/mediahost/internal/repository/postgres"
	"github.com/prn-tf/mediahost/internal/repository/sqlite"
	"github.com/prn-tf/mediahost/internal/schedule"
	"github.com/prn-tf/mediahost/internal/service"
	"github.com/prn-tf/mediahost/internal/session"
	"github.com/prn-tf/mediahost/internal/upload"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("Starting MediaHost server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// Database
	var (
		userRepo    repository.UserRepository
		apikeyRepo  repository.APIKeyRepository
		chunkRepo   repository.ChunkRepository
		contentRepo repository.ContentRepository
		closeDB     func() error
	)

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		userRepo = postgres.NewUserRepository(db)
		apikeyRepo = postgres.NewAPIKeyRepository(db)
		chunkRepo = postgres.NewChunkRepository(db)
		contentRepo = postgres.NewContentRepository(db)
		closeDB = db.Close

	default:
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		userRepo = sqlite.NewUserRepository(db)
		apikeyRepo = sqlite.NewAPIKeyRepository(db)
		chunkRepo = sqlite.NewChunkRepository(db)
		contentRepo = sqlite.NewContentRepository(db)
		closeDB = db.Close
	}
	defer func() {
		if err := closeDB(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database")
		}
	}()

	// Cache
	cache := memory.NewCache()
	defer cache.Stop()
	userRepo = repository.NewCachedUserRepository(userRepo, cache)

	// Refresh token store: Redis when configured, in-process otherwise.
	var refreshStore session.RefreshStore
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		refreshStore = session.NewRedisStore(client)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Using Redis refresh token store")
	} else {
		memStore := session.NewMemoryStore()
		defer memStore.Stop()
		refreshStore = memStore
	}

	// Crypto
	encryptionKey, err := cfg.Auth.GetEncryptionKey()
	if err != nil {
		return err
	}
	encryptor, err := crypto.NewEncryptor(encryptionKey)
	if err != nil {
		return err
	}

	// Core components
	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	scheduler := schedule.NewScheduler(logger)
	defer scheduler.Stop()

	registry := upload.NewRegistry(chunkRepo, contentRepo, scheduler, m, logger)
	defer registry.Stop()

	tokenService := session.NewTokenService([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenNamespace, refreshStore, logger)

	// Services
	userService := service.NewUserService(userRepo, apikeyRepo, contentRepo, chunkRepo, encryptor, cfg.Signup, cfg.Upload, cfg.Auth.SaltLength, logger)
	apikeyService := service.NewAPIKeyService(apikeyRepo, cfg.Auth.APITokenLength, logger)
	sessionService := service.NewSessionService(tokenService, refreshStore, cfg.Auth.TokenExpiration, cfg.Auth.RefreshExpiration, logger)
	contentService := service.NewContentService(contentRepo, chunkRepo, registry, cfg.Upload.MaxUnchunked, logger)

	// Auth
	verifier := auth.NewCredentialVerifier(userRepo, apikeyRepo, tokenService, logger)
	gate := auth.NewGate(verifier, userRepo, encryptor, cfg.Auth.AdminKeys, m, logger)

	// HTTP
	fallbackUser := ""
	if cfg.Upload.AllowNoOwner {
		fallbackUser = cfg.Upload.DefaultUser
	}
	router := handler.NewRouter(handler.RouterConfig{
		Gate:            gate,
		UserHandler:     handler.NewUserHandler(userService, logger),
		APIKeyHandler:   handler.NewAPIKeyHandler(apikeyService, logger),
		SessionHandler:  handler.NewSessionHandler(sessionService, logger),
		UploadHandler:   handler.NewUploadHandler(registry, logger),
		ContentHandler:  handler.NewContentHandler(contentService, userService, gate, fallbackUser, logger),
		Metrics:         m,
		Registry:        promRegistry,
		Logger:          logger,
		AnonymousUpload: cfg.Upload.AllowNoOwner,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      http.MaxBytesHandler(router, cfg.Server.MaxBodySize),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// setupLogger configures the global logger from config.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return log.Logger
}
