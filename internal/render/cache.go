package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"umlrender/internal/domain"
	"umlrender/internal/infra/logging"
	"umlrender/internal/infra/metrics"
)

const redisTimeout = time.Second

// Cache stores rendered artifacts by source and format. An in-process LRU is
// consulted first; Redis, when configured, is shared between instances.
type Cache struct {
	rdb   *redis.Client
	local *lru.Cache[string, []byte]
	ttl   time.Duration
}

// NewCache creates a cache. rdb may be nil; localSize <= 0 disables the LRU.
func NewCache(rdb *redis.Client, localSize int, ttl time.Duration) (*Cache, error) {
	c := &Cache{rdb: rdb, ttl: ttl}
	if localSize > 0 {
		l, err := lru.New[string, []byte](localSize)
		if err != nil {
			return nil, err
		}
		c.local = l
	}
	return c, nil
}

// cacheKey creates a SHA256-based key from source and format.
func cacheKey(source string, format domain.Format) string {
	h := sha256.New()
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return "umlcache:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached artifact. Redis failures count as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.local != nil {
		if b, ok := c.local.Get(key); ok {
			metrics.RenderCacheHits.Inc()
			return bytes.Clone(b), true
		}
	}
	if c.rdb != nil {
		ctxRedis, cancel := context.WithTimeout(ctx, redisTimeout)
		defer cancel()

		b, err := c.rdb.Get(ctxRedis, key).Bytes()
		switch {
		case err == redis.Nil:
		case err != nil:
			logging.Warn("Redis read failed", "error", err)
		default:
			if c.local != nil {
				c.local.Add(key, bytes.Clone(b))
			}
			metrics.RenderCacheHits.Inc()
			return b, true
		}
	}
	metrics.RenderCacheMisses.Inc()
	return nil, false
}

// Set stores a copy of data under key. A non-positive ttl is replaced by one
// minute.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	if c.local != nil {
		c.local.Add(key, bytes.Clone(data))
	}
	if c.rdb == nil {
		return
	}
	ttl := c.ttl
	if ttl <= 0 {
		ttl = time.Minute
	}
	ctxRedis, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := c.rdb.Set(ctxRedis, key, data, ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
