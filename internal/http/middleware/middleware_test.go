package middleware

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"umlrender/internal/config"
	"umlrender/internal/tokens"
)

func TestRegister_AddsHealthAndRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, config.Config{}, nil, nil)
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	healthReq, _ := http.NewRequest(http.MethodGet, "/ops/health", nil)
	healthResp, err := app.Test(healthReq)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if healthResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected health endpoint 200, got %d", healthResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("ping request failed: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id to be present")
	}
}

func TestRegister_ReadinessFollowsTokenStore(t *testing.T) {
	keys := tokens.NewCache()
	app := fiber.New()
	Register(app, config.Config{}, keys, nil)

	req, _ := http.NewRequest(http.MethodGet, "/ops/ready", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 before tokens are loaded, got %d", resp.StatusCode)
	}

	keys.Replace(map[string]tokens.Entry{})
	resp, _ = app.Test(req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 once tokens are loaded, got %d", resp.StatusCode)
	}
}

func TestKeyAuth(t *testing.T) {
	keys := tokens.NewCache()
	app := fiber.New()
	Register(app, config.Config{}, keys, nil)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		token, _ := c.Locals(APIKeyLocal).(string)
		return c.SendString(token)
	})

	withKey := func(key string) *http.Request {
		req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		return req
	}

	resp, _ := app.Test(withKey("abc"))
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 while token store is not ready, got %d", resp.StatusCode)
	}

	keys.Replace(map[string]tokens.Entry{"abc": {RateLimit: 10}})

	resp, _ = app.Test(withKey("abc"))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for known key, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(withKey("nope"))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(withKey(""))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected public access without a key, got %d", resp.StatusCode)
	}
}

func TestRequireScope(t *testing.T) {
	keys := tokens.NewCache()
	keys.Replace(map[string]tokens.Entry{
		"validator": {Scope: tokens.Scope{"validate": true}},
		"any":       {},
	})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(APIKeyLocal, c.Get("X-API-Key"))
		return c.Next()
	})
	app.Post("/render", RequireScope(keys, "render"), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	cases := map[string]int{"validator": fiber.StatusForbidden, "any": fiber.StatusOK, "": fiber.StatusOK}
	for key, want := range cases {
		req, _ := http.NewRequest(http.MethodPost, "/render", nil)
		req.Header.Set("X-API-Key", key)
		resp, _ := app.Test(req)
		if resp.StatusCode != want {
			t.Fatalf("key %q: expected %d, got %d", key, want, resp.StatusCode)
		}
	}
}

func TestMask(t *testing.T) {
	if got := mask("abcdefgh"); got != "abcd****" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := mask("ab"); got != "****" {
		t.Fatalf("unexpected mask %q", got)
	}
}
