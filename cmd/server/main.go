package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/huskiesio/api/internal/api"
	"github.com/huskiesio/api/internal/avatars"
	"github.com/huskiesio/api/internal/config"
	"github.com/huskiesio/api/internal/handlers"
	"github.com/huskiesio/api/internal/mailer"
	"github.com/huskiesio/api/internal/registry"
	"github.com/huskiesio/api/internal/socket"
	"github.com/huskiesio/api/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Run migrations
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")
	}

	// Data store: PostgreSQL in production, SQLite for local development
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		db = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		db = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite")
	}
	defer db.Close()

	// Cache store: Redis in production, in-memory for local development
	var cache store.CacheStore
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		cache = redisStore
		logger.Info().Msg("connected to Redis")
	} else {
		cache = store.NewMemoryCache()
		logger.Info().Msg("using in-memory cache")
	}
	defer cache.Close()

	// Verification mail: SendGrid when a key is configured, log output otherwise
	var m mailer.Mailer
	if cfg.SendGridKey != "" {
		m = mailer.NewSendGridMailer(cfg.SendGridKey, cfg.MailFrom)
		logger.Info().Msg("using SendGrid mailer")
	} else {
		m = mailer.NewLogMailer(logger)
		logger.Info().Msg("using log mailer")
	}

	// Avatar storage: S3 bucket when configured, local disk otherwise
	var av avatars.Store
	if cfg.AvatarBucket != "" {
		s3Store, err := avatars.NewS3Store(ctx, cfg.AvatarBucket, cfg.S3Endpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("s3 avatar store failed")
		}
		av = s3Store
		logger.Info().Str("bucket", cfg.AvatarBucket).Msg("using S3 avatar storage")
	} else {
		diskStore, err := avatars.NewDiskStore(cfg.AvatarDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("avatar directory failed")
		}
		av = diskStore
		logger.Info().Str("dir", cfg.AvatarDir).Msg("using disk avatar storage")
	}

	// Wire the command surface
	reg := registry.New()
	h := handlers.New(db, cache, reg, m, av, cfg, logger)
	mux := socket.NewMux()
	handlers.Register(mux, h)
	ws := socket.NewServer(mux, logger, nil)

	router := api.NewRouter(logger, db, cache, ws)

	// No WriteTimeout: websocket connections stay open for hours.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting HuskyChat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
