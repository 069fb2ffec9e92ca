// Package ratelimit provides the shared storage behind the request limiters.
package ratelimit

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"umlrender/internal/infra/logging"
)

// RedisConfig selects the Redis instance holding limiter counters.
type RedisConfig struct {
	Addr string
	DB   int
}

// NewStore returns Redis-backed storage when an address is configured and
// reachable, and in-memory storage otherwise. It never returns nil.
func NewStore(cfg RedisConfig) fiber.Storage {
	if cfg.Addr == "" {
		logging.Info("Using in-memory storage for rate limiting")
		return memoryStorage.New()
	}
	store, err := newRedisStore(cfg)
	if err != nil {
		logging.Error("Redis limiter store init failed, falling back to memory", "addr", cfg.Addr, "error", err)
		return memoryStorage.New()
	}
	logging.Info("Using Redis for rate limiting", "addr", cfg.Addr, "db", cfg.DB)
	return store
}

// newRedisStore converts the panic raised by the storage driver on a failed
// ping into an error.
func newRedisStore(cfg RedisConfig) (store fiber.Storage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("redis storage: %v", r)
		}
	}()
	return redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Addr},
		Database: cfg.DB,
	}), nil
}
