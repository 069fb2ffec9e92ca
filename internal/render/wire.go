package render

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"umlrender/internal/config"
	"umlrender/internal/domain"
	"umlrender/internal/infra/plantuml"
)

// NewFromConfig assembles the pipeline from configuration. rdb may be nil.
func NewFromConfig(cfg config.Config, rdb *redis.Client) (*Service, error) {
	denylist, err := domain.CompilePatterns(cfg.Security.Denylist)
	if err != nil {
		return nil, fmt.Errorf("security.denylist: %w", err)
	}
	flags, err := domain.CompilePatterns(cfg.Moderation.FlagPatterns)
	if err != nil {
		return nil, fmt.Errorf("moderation.flag_patterns: %w", err)
	}

	engine, err := plantuml.NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	var pool *plantuml.Pool
	if cfg.Engine.PoolSize > 0 {
		if pool, err = plantuml.NewPool(cfg.Engine.PoolSize); err != nil {
			return nil, err
		}
	}

	var cache *Cache
	if cfg.Cache.RenderCacheEnabled {
		if !cfg.RedisEnabled() {
			rdb = nil
		}
		if cache, err = NewCache(rdb, cfg.Cache.LocalCacheSize, cfg.Cache.RenderCacheTTL); err != nil {
			return nil, err
		}
	}

	return NewService(Options{
		Sanitizer:     domain.NewSanitizer(cfg.Limits.MaxSourceChars, denylist),
		Flags:         flags,
		Engine:        plantuml.NewAdapter(engine, pool),
		Pool:          pool,
		Coordinator:   NewCoordinator(cfg.Render.MaxConcurrent, cfg.RenderTimeout()),
		Cache:         cache,
		StatusTimeout: cfg.StatusTimeout(),
	}), nil
}
