package tokens

import (
	"context"
	"time"

	"umlrender/internal/infra/logging"
)

// Repository loads the full key table.
type Repository interface {
	LoadTokens(ctx context.Context) (map[string]Entry, error)
}

const loadTimeout = 5 * time.Second

// Reloader refreshes a Cache from a Repository. A failed load keeps the
// previous table.
type Reloader struct {
	repo     Repository
	cache    *Cache
	interval time.Duration
}

func NewReloader(repo Repository, cache *Cache, interval time.Duration) *Reloader {
	return &Reloader{repo: repo, cache: cache, interval: interval}
}

// LoadOnce performs a single load.
func (r *Reloader) LoadOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	m, err := r.repo.LoadTokens(ctx)
	if err != nil {
		return err
	}
	r.cache.Replace(m)
	return nil
}

// Start reloads in the background every interval until ctx is done.
func (r *Reloader) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.LoadOnce(ctx); err != nil {
					logging.Error("Failed to reload API tokens", "error", err)
					continue
				}
				logging.Debug("API tokens reloaded", "count", r.cache.Len())
			case <-ctx.Done():
				return
			}
		}
	}()
}
