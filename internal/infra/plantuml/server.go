package plantuml

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"umlrender/internal/domain"
)

const (
	headerDiagramError     = "X-PlantUML-Diagram-Error"
	headerDiagramErrorLine = "X-PlantUML-Diagram-Error-Line"
	versionSource          = "@startuml\nversion\n@enduml"
	maxErrorBody           = 512
)

// ServerEngine talks to a PlantUML server (plantuml/plantuml-server).
type ServerEngine struct {
	baseURL string
	client  *http.Client
}

// NewServerEngine returns an engine for the server at baseURL, for example
// http://localhost:8080/plantuml.
func NewServerEngine(baseURL string, client *http.Client) *ServerEngine {
	if client == nil {
		client = http.DefaultClient
	}
	return &ServerEngine{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (e *ServerEngine) get(ctx context.Context, format domain.Format, source string) (*http.Response, error) {
	encoded, err := Encode(source)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s/%s", e.baseURL, format, encoded)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "umlrender")
	return e.client.Do(req)
}

// Render fetches the rendered artifact. Any non-200 answer is a failure.
func (e *ServerEngine) Render(ctx context.Context, source string, format domain.Format) ([]byte, error) {
	resp, err := e.get(ctx, format, source)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if msg := resp.Header.Get(headerDiagramError); msg != "" {
			return nil, fmt.Errorf("line %s: %s", resp.Header.Get(headerDiagramErrorLine), msg)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("server error: %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

// CheckSyntax renders the txt form and reads the diagram error headers.
func (e *ServerEngine) CheckSyntax(ctx context.Context, source string) (SyntaxReport, error) {
	resp, err := e.get(ctx, domain.FormatTXT, source)
	if err != nil {
		return SyntaxReport{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if msg := resp.Header.Get(headerDiagramError); msg != "" {
		line := resp.Header.Get(headerDiagramErrorLine)
		if line != "" {
			msg = fmt.Sprintf("line %s: %s", line, msg)
		}
		return SyntaxReport{Valid: false, Errors: []string{msg}}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return SyntaxReport{}, fmt.Errorf("server error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return SyntaxReport{Valid: true}, nil
}

// Version renders the built-in version diagram and extracts the version number.
func (e *ServerEngine) Version(ctx context.Context) (string, error) {
	body, err := e.Render(ctx, versionSource, domain.FormatTXT)
	if err != nil {
		return "", err
	}
	m := versionPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("version not found in server response")
	}
	return string(m[1]), nil
}
