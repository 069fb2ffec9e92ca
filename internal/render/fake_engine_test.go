package render

import (
	"context"
	"sync/atomic"

	"umlrender/internal/domain"
)

// fakeEngine counts calls and delegates to optional hooks.
type fakeEngine struct {
	renders  atomic.Int64
	checks   atomic.Int64
	versions atomic.Int64

	render  func(ctx context.Context, source string, format domain.Format) ([]byte, error)
	check   func(ctx context.Context, source string) (domain.ValidationResult, error)
	version func(ctx context.Context) (string, error)
}

func (f *fakeEngine) Render(ctx context.Context, source string, format domain.Format) ([]byte, error) {
	f.renders.Add(1)
	if f.render != nil {
		return f.render(ctx, source, format)
	}
	return []byte("artifact:" + string(format)), nil
}

func (f *fakeEngine) Check(ctx context.Context, source string) (domain.ValidationResult, error) {
	f.checks.Add(1)
	if f.check != nil {
		return f.check(ctx, source)
	}
	return domain.ValidationResult{Valid: true, Errors: []string{}, Warnings: []string{}}, nil
}

func (f *fakeEngine) EngineVersion(ctx context.Context) (string, error) {
	f.versions.Add(1)
	if f.version != nil {
		return f.version(ctx)
	}
	return "1.2024.7", nil
}
