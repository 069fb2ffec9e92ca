// Package server assembles the fiber application.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"umlrender/internal/config"
	"umlrender/internal/http/handlers"
	"umlrender/internal/http/middleware"
	"umlrender/internal/tokens"
)

// Deps are the collaborators of the HTTP layer. Tokens and LimiterStore are
// optional.
type Deps struct {
	Config       config.Config
	Service      handlers.Pipeline
	Tokens       *tokens.Cache
	LimiterStore fiber.Storage
}

// New creates the app with middleware, routes and JSON error handling.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               d.Config.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             d.Config.Limits.MaxBodyBytes,
		ErrorHandler:          handlers.ErrorHandler,
	})

	middleware.Register(app, d.Config, d.Tokens, d.LimiterStore)
	registerRoutes(app, d)

	// every unmatched route answers with a JSON 404
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})
	return app
}

func registerRoutes(app *fiber.App, d Deps) {
	h := handlers.NewHandler(d.Service)
	scope := func(op string) fiber.Handler { return middleware.RequireScope(d.Tokens, op) }

	v1 := app.Group("/v1")
	v1.Post("/render", scope("render"), h.Render)
	v1.Post("/render/:format", scope("render"), h.RenderRaw)
	v1.Post("/validate", scope("validate"), h.Validate)
	v1.Get("/status", scope("status"), h.Status)
	v1.Get("/engine/stats", scope("status"), h.EngineStats)
	v1.Get("/monitor", monitor.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
