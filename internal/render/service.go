package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"umlrender/internal/domain"
	"umlrender/internal/infra/logging"
	"umlrender/internal/infra/metrics"
	"umlrender/internal/infra/plantuml"
)

// Engine is the part of the engine adapter the pipeline uses.
type Engine interface {
	Versioner
	Render(ctx context.Context, source string, format domain.Format) ([]byte, error)
	Check(ctx context.Context, source string) (domain.ValidationResult, error)
}

// Options wires a Service.
type Options struct {
	Sanitizer   *domain.Sanitizer
	Flags       []domain.Pattern
	Engine      Engine
	Coordinator *Coordinator
	// Pool is the engine pool backing Engine, reported by EngineStats.
	Pool *plantuml.Pool
	// Cache is optional.
	Cache *Cache
	// StatusTimeout bounds the engine version lookup of Status.
	StatusTimeout time.Duration
}

// Service is the render request pipeline:
// sanitize → dispatch format → coordinate → (cache) → engine.
type Service struct {
	sanitizer *domain.Sanitizer
	flags     []domain.Pattern
	engine    Engine
	coord     *Coordinator
	cache     *Cache
	pool      *plantuml.Pool
	status    *StatusReporter
	inflight  singleflight.Group
}

// NewService builds the pipeline. Missing sanitizer or coordinator get defaults.
func NewService(opts Options) *Service {
	s := &Service{
		sanitizer: opts.Sanitizer,
		flags:     opts.Flags,
		engine:    opts.Engine,
		coord:     opts.Coordinator,
		cache:     opts.Cache,
		pool:      opts.Pool,
	}
	if s.sanitizer == nil {
		s.sanitizer = domain.DefaultSanitizer()
	}
	if s.coord == nil {
		s.coord = NewCoordinator(0, 0)
	}
	s.status = NewStatusReporter(s.engine, s.coord, opts.StatusTimeout)
	return s
}

// Coordinator returns the coordinator owning the active-operation counter.
func (s *Service) Coordinator() *Coordinator { return s.coord }

func reject[T any](err error) *Handle[T] {
	de := domain.Classify(err)
	if errors.Is(err, domain.ErrPatternTimeout) {
		logging.Warn("Denylist pattern timed out, rejecting source", "error", de.Cause)
	}
	metrics.RejectedRequests.WithLabelValues(string(de.Kind)).Inc()
	return Failed[T](err)
}

// Render sanitizes the request, resolves its format and schedules the render.
// Rejected requests resolve immediately and never reach the engine.
func (s *Service) Render(ctx context.Context, req domain.RenderRequest) *Handle[domain.RenderResult] {
	if err := s.sanitizer.Check(req.SourceText); err != nil {
		return reject[domain.RenderResult](err)
	}
	format, err := domain.ResolveFormat(req.Format)
	if err != nil {
		return reject[domain.RenderResult](err)
	}

	source := req.SourceText
	return Submit(s.coord, ctx, "render", func(ctx context.Context) (domain.RenderResult, error) {
		key := cacheKey(source, format)
		if s.cache != nil {
			if b, ok := s.cache.Get(ctx, key); ok {
				logging.Debug("Render cache hit", "key", key)
				return domain.RenderResult{ImageBytes: b, Format: format, Cached: true}, nil
			}
		}

		ch := s.inflight.DoChan(key, func() (any, error) {
			return s.renderShared(ctx, key, source, format)
		})
		select {
		case r := <-ch:
			if r.Err != nil {
				logging.Error("PlantUML render failed", "format", format, "error", r.Err)
				return domain.RenderResult{}, r.Err
			}
			b := r.Val.([]byte)
			if r.Shared {
				logging.Debug("Render shared with concurrent request", "key", key)
				b = bytes.Clone(b)
			}
			return domain.RenderResult{ImageBytes: b, Format: format}, nil
		case <-ctx.Done():
			// only this caller gives up; the shared call keeps serving the others
			return domain.RenderResult{}, ctx.Err()
		}
	})
}

// renderShared is the engine call behind every caller waiting on key. It is
// detached from the caller that started it and bounded by the coordinator
// deadline instead.
func (s *Service) renderShared(ctx context.Context, key, source string, format domain.Format) (b []byte, err error) {
	// DoChan re-raises panics on a goroutine nobody can recover
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Shared render panicked", "panic", fmt.Sprint(r))
			b, err = nil, fmt.Errorf("render panicked: %v", r)
		}
	}()

	ctx = context.WithoutCancel(ctx)
	timeout := s.coord.Timeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	b, err = s.engine.Render(ctx, source, format)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.KindRenderTimeout,
				fmt.Sprintf("PlantUML render exceeded %s", timeout), err)
		}
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, b)
	}
	return b, nil
}

// Validate sanitizes source and schedules a syntax check. It ignores formats.
func (s *Service) Validate(ctx context.Context, source string) *Handle[domain.ValidationResult] {
	if err := s.sanitizer.Check(source); err != nil {
		return reject[domain.ValidationResult](err)
	}
	return Submit(s.coord, ctx, "validate", func(ctx context.Context) (domain.ValidationResult, error) {
		res, err := s.engine.Check(ctx, source)
		if err != nil {
			logging.Error("PlantUML validation failed", "error", err)
			return domain.ValidationResult{}, err
		}
		if flags := domain.ContentFlags(source, s.flags); len(flags) > 0 {
			res.Warnings = append(append([]string{}, res.Warnings...), flags...)
		}
		return res, nil
	})
}

// Status reports health, engine version, uptime and active operations.
func (s *Service) Status(ctx context.Context) domain.ServiceStatus {
	return s.status.Status(ctx)
}

// EngineStats reports engine pool usage. A nil pool reports disabled.
func (s *Service) EngineStats() plantuml.PoolStats {
	if s.pool == nil {
		return plantuml.PoolStats{}
	}
	return s.pool.Stats()
}

var _ Engine = (*plantuml.Adapter)(nil)
