package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umlrender/internal/config"
	"umlrender/internal/domain"
)

func fakePlantUMLServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/plantuml/png/"):
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG\r\n"))
		case strings.HasPrefix(r.URL.Path, "/plantuml/txt/"):
			_, _ = w.Write([]byte("PlantUML version 1.2024.7 (Sun Sep 22 2024)\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewFromConfig_ServerEngine(t *testing.T) {
	srv := fakePlantUMLServer(t)
	cfg := config.Default()
	cfg.Engine.ServerURL = srv.URL + "/plantuml"
	cfg.Engine.PoolSize = 2
	cfg.Cache.RenderCacheEnabled = true

	svc, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)

	res, err := svc.Render(context.Background(), domain.RenderRequest{SourceText: aliceBob}).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n", string(res.ImageBytes))

	st := svc.Status(context.Background())
	assert.True(t, st.Healthy)
	assert.Equal(t, "1.2024.7", st.EngineVersion)

	stats := svc.EngineStats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, 2, stats.Capacity)
	assert.EqualValues(t, 1, stats.Acquired)
}

func TestNewFromConfig_AppliesLimitsAndDenylist(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxSourceChars = 20
	cfg.Security.Denylist = []string{`!include\s+https?://`}
	cfg.Render.TimeoutSecs = config.Secs(1)

	svc, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, svc.Coordinator().Timeout())

	_, err = svc.Validate(context.Background(), strings.Repeat("x", 21)).Await(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Validate(context.Background(), "!include http://x").Await(context.Background())
	assert.ErrorIs(t, err, domain.ErrSecurityViolation)
}

func TestNewFromConfig_RejectsBadPatterns(t *testing.T) {
	cfg := config.Default()
	cfg.Security.Denylist = []string{"(unclosed"}
	_, err := NewFromConfig(cfg, nil)
	assert.ErrorContains(t, err, "security.denylist")

	cfg = config.Default()
	cfg.Moderation.FlagPatterns = []string{"[bad"}
	_, err = NewFromConfig(cfg, nil)
	assert.ErrorContains(t, err, "moderation.flag_patterns")
}
