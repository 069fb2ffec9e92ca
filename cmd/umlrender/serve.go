package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"umlrender/internal/config"
	"umlrender/internal/http/server"
	"umlrender/internal/infra/logging"
	"umlrender/internal/infra/postgres"
	"umlrender/internal/infra/ratelimit"
	"umlrender/internal/render"
	"umlrender/internal/tokens"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RenderCacheDB,
		})
		defer func() { _ = rdb.Close() }()
	}

	svc, err := render.NewFromConfig(cfg, rdb)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	keys, closeTokens, err := startTokens(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTokens()

	app := server.New(server.Deps{
		Config:  cfg,
		Service: svc,
		Tokens:  keys,
		LimiterStore: ratelimit.NewStore(ratelimit.RedisConfig{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RateLimitDB,
		}),
	})

	logging.Info("Starting umlrender",
		"addr", cfg.Server.Host+cfg.Server.Port,
		"engine", cfg.Engine.Kind,
		"pool_size", cfg.Engine.PoolSize,
		"max_concurrent", cfg.Render.MaxConcurrent,
	)
	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
	return nil
}

// startTokens loads API keys when auth is enabled and keeps them fresh. A nil
// cache means every request is public.
func startTokens(ctx context.Context, cfg config.Config) (*tokens.Cache, func(), error) {
	if !cfg.Auth.Enabled {
		return nil, func() {}, nil
	}
	dsn, err := postgres.DSN(cfg.Auth.Postgres)
	if err != nil {
		return nil, nil, err
	}
	db := postgres.NewDB()
	keys := tokens.NewCache()
	reloader := tokens.NewReloader(postgres.NewTokenRepository(db, dsn), keys, cfg.Auth.ReloadInterval)
	if err := reloader.LoadOnce(ctx); err != nil {
		// keyed requests answer 503 until a reload succeeds
		logging.Error("Failed to load API tokens", "error", err)
	}
	reloader.Start(ctx)
	return keys, func() { _ = db.Close() }, nil
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
