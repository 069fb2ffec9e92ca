package plantuml

import (
	"context"
	"fmt"

	"umlrender/internal/domain"
)

// Adapter guards calls into an Engine. Every failure leaving the adapter is a
// *domain.Error of kind RENDER_ERROR carrying the engine message.
type Adapter struct {
	engine Engine
	pool   *Pool
}

// NewAdapter wraps engine. A nil pool leaves engine calls unbounded.
func NewAdapter(engine Engine, pool *Pool) *Adapter {
	return &Adapter{engine: engine, pool: pool}
}

// Pool returns the engine pool, or nil when calls are unbounded.
func (a *Adapter) Pool() *Pool { return a.pool }

func (a *Adapter) guard(ctx context.Context, op string, pooled bool, fn func(ctx context.Context) error) (err error) {
	if pooled && a.pool != nil {
		if perr := a.pool.Acquire(ctx); perr != nil {
			return domain.WrapError(domain.KindRender, "Engine unavailable: "+perr.Error(), perr)
		}
		defer a.pool.Release()
	}
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewError(domain.KindRender, fmt.Sprintf("Engine crashed during %s: %v", op, r))
		}
	}()
	if ferr := fn(ctx); ferr != nil {
		return domain.WrapError(domain.KindRender, fmt.Sprintf("Failed to %s: %v", op, ferr), ferr)
	}
	return nil
}

// Render produces the artifact for an already sanitized source.
func (a *Adapter) Render(ctx context.Context, source string, format domain.Format) ([]byte, error) {
	var out []byte
	err := a.guard(ctx, "render PlantUML diagram", true, func(ctx context.Context) error {
		b, err := a.engine.Render(ctx, source, format)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return fmt.Errorf("engine returned an empty %s artifact", format)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) checkSyntax(ctx context.Context, source string) (SyntaxReport, error) {
	var report SyntaxReport
	err := a.guard(ctx, "validate PlantUML code", true, func(ctx context.Context) error {
		r, err := a.engine.CheckSyntax(ctx, source)
		report = r
		return err
	})
	return report, err
}

// IsSyntaxValid reports the engine's verdict on source.
func (a *Adapter) IsSyntaxValid(ctx context.Context, source string) (bool, error) {
	r, err := a.checkSyntax(ctx, source)
	if err != nil {
		return false, err
	}
	return r.Valid, nil
}

// SyntaxErrors returns the ordered engine errors for source; empty when valid.
func (a *Adapter) SyntaxErrors(ctx context.Context, source string) ([]string, error) {
	r, err := a.checkSyntax(ctx, source)
	if err != nil {
		return nil, err
	}
	if r.Valid {
		return []string{}, nil
	}
	return nonEmpty(r.Errors), nil
}

// SyntaxWarnings returns ordered warnings for source regardless of validity.
func (a *Adapter) SyntaxWarnings(_ context.Context, source string) ([]string, error) {
	return Lint(source), nil
}

// Check runs one syntax check and assembles the full validation result.
func (a *Adapter) Check(ctx context.Context, source string) (domain.ValidationResult, error) {
	r, err := a.checkSyntax(ctx, source)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	res := domain.ValidationResult{Valid: r.Valid, Errors: []string{}, Warnings: Lint(source)}
	if !r.Valid {
		res.Errors = nonEmpty(r.Errors)
	}
	return res, nil
}

// EngineVersion returns the engine version string.
func (a *Adapter) EngineVersion(ctx context.Context) (string, error) {
	var v string
	// version lookups back status queries and must not queue behind renders
	err := a.guard(ctx, "query PlantUML version", false, func(ctx context.Context) error {
		got, err := a.engine.Version(ctx)
		v = got
		return err
	})
	return v, err
}

// nonEmpty keeps Errors non-empty for an invalid verdict.
func nonEmpty(errs []string) []string {
	if len(errs) == 0 {
		return []string{"Syntax Error"}
	}
	out := make([]string, len(errs))
	copy(out, errs)
	return out
}
