package domain

import "time"

// Format is an output format supported by the renderer.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
	FormatTXT Format = "txt"
)

// ContentType returns the MIME type of a rendered artifact.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatTXT:
		return "text/plain; charset=utf-8"
	default:
		return "image/png"
	}
}

// RenderRequest is a single render call.
type RenderRequest struct {
	SourceText string
	// Format is the raw requested format; empty selects the default.
	Format string
}

// RenderResult is a rendered artifact. It is not modified after it is produced.
type RenderResult struct {
	ImageBytes   []byte
	Format       Format
	RenderTimeMs int64
	Cached       bool
}

// WithRenderTime returns a copy of r carrying the measured duration.
func (r RenderResult) WithRenderTime(d time.Duration) RenderResult {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	r.RenderTimeMs = ms
	return r
}

// ValidationResult is the outcome of a syntax check. Errors is empty iff Valid.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ServiceStatus is a point-in-time health snapshot.
type ServiceStatus struct {
	Healthy          bool
	EngineVersion    string
	UptimeMs         int64
	ActiveOperations int64
}
