package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/loomlabs/loom"
	"github.com/loomlabs/loom/catalog"
	"github.com/loomlabs/loom/collab"
	"github.com/loomlabs/loom/internal/api"
	"github.com/loomlabs/loom/internal/config"
	"github.com/loomlabs/loom/internal/handlers"
	"github.com/loomlabs/loom/llm/openrouter"
	"github.com/loomlabs/loom/storage"
	"github.com/loomlabs/loom/usage"
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

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.OpenRouterAPIKey == "" {
		logger.Fatal().Msg("OPENROUTER_API_KEY is required")
	}

	// Connect PostgreSQL and run migrations
	store, pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	logger.Info().Msg("running database migrations...")
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Msg("migrations completed")

	// Model catalog
	cat := catalog.Default()

	// Usage recorder
	recorder := usage.NewPostgresRecorder(pool, cat)
	if err := recorder.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("usage migration failed")
	}
	recorder.Start()
	defer recorder.Close()

	// OpenRouter LLM client
	caller, err := openrouter.New(openrouter.Config{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Referer: cfg.OpenRouterReferer,
		Title:   cfg.OpenRouterTitle,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("openrouter client failed")
	}

	// Conversation engine
	engine, err := loom.New(&loom.Config{
		Store:                store,
		Caller:               caller,
		Catalog:              cat,
		Usage:                recorder,
		Logger:               loom.NewZerologLogger(logger),
		DefaultModel:         cfg.DefaultModel,
		SummarizationModel:   cfg.SummarizationModel,
		SummarizeThreshold:   cfg.SummarizeThreshold,
		MaxContextTokens:     cfg.MaxContextTokens,
		MaxContextMessages:   cfg.MaxContextMessages,
		SummarizationTimeout: cfg.SummarizationTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}
	defer engine.Close()

	// Collaboration pipeline
	pipeline, err := collab.New(collab.Config{
		Caller:  caller,
		Catalog: cat,
		Usage:   recorder,
		Logger:  loom.NewZerologLogger(logger),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline init failed")
	}

	// Redis (optional, enables rate limiting)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClient.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Create router
	h := handlers.NewHandler(engine, pipeline, recorder)
	router := api.NewRouter(logger, h, redisClient)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // LLM calls are slow
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting loom server")

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
