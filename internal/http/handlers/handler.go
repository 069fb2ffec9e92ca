// Package handlers exposes the render pipeline over HTTP.
package handlers

import (
	"context"
	"encoding/base64"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"umlrender/internal/domain"
	"umlrender/internal/infra/plantuml"
	"umlrender/internal/render"
)

// Pipeline is the render service as seen by the HTTP layer.
type Pipeline interface {
	Render(ctx context.Context, req domain.RenderRequest) *render.Handle[domain.RenderResult]
	Validate(ctx context.Context, source string) *render.Handle[domain.ValidationResult]
	Status(ctx context.Context) domain.ServiceStatus
	EngineStats() plantuml.PoolStats
}

// Handler serves the /v1 endpoints.
type Handler struct {
	svc      Pipeline
	validate *validator.Validate
}

func NewHandler(svc Pipeline) *Handler {
	return &Handler{svc: svc, validate: newValidator()}
}

type renderRequest struct {
	SourceText *string `json:"sourceText" validate:"required"`
	Format     string  `json:"format"`
}

type validateRequest struct {
	SourceText *string `json:"sourceText" validate:"required"`
}

type renderResponse struct {
	ImageData    string `json:"imageData"`
	Format       string `json:"format"`
	RenderTimeMs int64  `json:"renderTimeMs"`
}

type validationResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type statusResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	UptimeMs         int64  `json:"uptimeMs"`
	ActiveOperations int64  `json:"activeOperations"`
}

// Render handles POST /v1/render and answers with the base64 artifact.
func (h *Handler) Render(c *fiber.Ctx) error {
	var req renderRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	res, err := h.svc.Render(ctx, domain.RenderRequest{SourceText: *req.SourceText, Format: req.Format}).Await(ctx)
	if err != nil {
		return err
	}
	setCacheHeader(c, res.Cached)
	return c.JSON(renderResponse{
		ImageData:    base64.StdEncoding.EncodeToString(res.ImageBytes),
		Format:       string(res.Format),
		RenderTimeMs: res.RenderTimeMs,
	})
}

// RenderRaw handles POST /v1/render/:format. The body is the diagram source
// and the response is the artifact itself.
func (h *Handler) RenderRaw(c *fiber.Ctx) error {
	ctx := c.UserContext()
	res, err := h.svc.Render(ctx, domain.RenderRequest{
		SourceText: string(c.Body()),
		Format:     c.Params("format"),
	}).Await(ctx)
	if err != nil {
		return err
	}
	setCacheHeader(c, res.Cached)
	c.Set(fiber.HeaderContentType, res.Format.ContentType())
	return c.Send(res.ImageBytes)
}

func setCacheHeader(c *fiber.Ctx, cached bool) {
	if cached {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
}

// Validate handles POST /v1/validate.
func (h *Handler) Validate(c *fiber.Ctx) error {
	var req validateRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	res, err := h.svc.Validate(ctx, *req.SourceText).Await(ctx)
	if err != nil {
		return err
	}
	return c.JSON(validationResponse{
		Valid:    res.Valid,
		Errors:   orEmpty(res.Errors),
		Warnings: orEmpty(res.Warnings),
	})
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Status handles GET /v1/status. An unhealthy service answers 503.
func (h *Handler) Status(c *fiber.Ctx) error {
	st := h.svc.Status(c.UserContext())
	resp := statusResponse{
		Status:           "healthy",
		Version:          st.EngineVersion,
		UptimeMs:         st.UptimeMs,
		ActiveOperations: st.ActiveOperations,
	}
	if !st.Healthy {
		resp.Status = "unhealthy"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// EngineStats handles GET /v1/engine/stats.
func (h *Handler) EngineStats(c *fiber.Ctx) error {
	return c.JSON(h.svc.EngineStats())
}
