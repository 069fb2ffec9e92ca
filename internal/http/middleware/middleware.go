// Package middleware holds the global request chain: CORS, request ids,
// health probes, API-key auth, rate limits and access logging.
package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/rs/xid"

	"umlrender/internal/config"
	"umlrender/internal/http/handlers"
	"umlrender/internal/infra/logging"
	"umlrender/internal/tokens"
)

// APIKeyLocal is the fiber.Ctx local holding the authenticated API key.
const APIKeyLocal = "api_key"

const (
	HealthPath = "/ops/health"
	ReadyPath  = "/ops/ready"
)

// Register attaches the global middleware. keys may be nil when API keys are
// disabled; store may be nil, in which case limiter state is kept in memory.
func Register(app *fiber.App, cfg config.Config, keys *tokens.Cache, store fiber.Storage) {
	if store == nil {
		store = memoryStorage.New()
	}

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  HealthPath,
		ReadinessEndpoint: ReadyPath,
		ReadinessProbe: func(*fiber.Ctx) bool {
			return keys == nil || keys.Ready()
		},
	}))

	app.Use(accessLog)

	if keys != nil {
		app.Use(keyAuth(keys))
	}

	rl := RateLimitConfig{
		RateInterval:           cfg.RateLimiter.Interval,
		EnableTokenRateLimiter: keys != nil,
		EnableUserLimiter:      cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0,
		UserLimit:              cfg.RateLimiter.UserLimit,
	}
	if rl.RateInterval <= 0 {
		rl.RateInterval = time.Minute
	}
	if keys != nil {
		app.Use(TokenRateLimit(rl, keys, store, NewLimiterCache()))
	}
	app.Use(UserRateLimit(rl, store))
}

// keyAuth validates X-API-Key when present. Requests without a key are public.
func keyAuth(keys *tokens.Cache) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if err := keys.Validate(key); err != nil {
				return false, err
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may pass a nil error
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, tokens.ErrStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			logging.Warn("API key rejected", "path", c.Path(), "error", err)
			return c.Status(status).JSON(handlers.ErrorResponse{
				Error:     handlers.StatusCode(status),
				Message:   err.Error(),
				Timestamp: time.Now().UnixMilli(),
			})
		},
	})
}

// RequireScope rejects authenticated requests whose key is not allowed to call
// op. Public requests pass.
func RequireScope(keys *tokens.Cache, op string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := apiKey(c)
		if keys == nil || token == "" || keys.Allows(token, op) {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(handlers.ErrorResponse{
			Error:     handlers.StatusCode(fiber.StatusForbidden),
			Message:   "API key is not allowed to call " + op,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}

func accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
	}
	requestID, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
	logging.Info("Request handled",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)
	return err
}
