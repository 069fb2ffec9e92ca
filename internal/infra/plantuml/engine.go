package plantuml

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"umlrender/internal/config"
	"umlrender/internal/domain"
)

// Engine is the narrow contract of an external PlantUML engine.
type Engine interface {
	Render(ctx context.Context, source string, format domain.Format) ([]byte, error)
	CheckSyntax(ctx context.Context, source string) (SyntaxReport, error)
	Version(ctx context.Context) (string, error)
}

// SyntaxReport is an engine's verdict on a source.
type SyntaxReport struct {
	Valid       bool
	DiagramType string
	Errors      []string
}

var versionPattern = regexp.MustCompile(`(?i)PlantUML version ([0-9][0-9A-Za-z.\-]*)`)

// NewEngine builds the engine selected by cfg.Kind.
func NewEngine(cfg config.EngineConfig) (Engine, error) {
	switch cfg.Kind {
	case config.EngineServer, "":
		client := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSecs) * time.Second}
		return NewServerEngine(cfg.ServerURL, client), nil
	case config.EngineJar:
		return NewJarEngine(cfg.JavaPath, cfg.JarPath), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
	}
}
