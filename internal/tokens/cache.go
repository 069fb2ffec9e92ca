// Package tokens holds the in-memory API key table used by request
// authentication and per-key rate limiting.
package tokens

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrStoreNotReady signals that no token list has been loaded yet, for
	// example while the database is still starting.
	ErrStoreNotReady = errors.New("token store not ready")
)

// Scope lists the operations a key may call ("render", "validate", "status").
// An empty scope allows every operation.
type Scope map[string]bool

// Entry is one API key.
type Entry struct {
	// RateLimit is requests per limiter interval. 0 disables the per-key limit.
	RateLimit int
	Scope     Scope
}

// Cache is a concurrency-safe snapshot of the key table. It is replaced
// wholesale on every reload.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps in a copy of m.
func (c *Cache) Replace(m map[string]Entry) {
	entries := make(map[string]Entry, len(m))
	for k, v := range m {
		entries[k] = v
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Ready reports whether a token list has been loaded at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries != nil
}

// Validate checks a presented key.
func (c *Cache) Validate(key string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries == nil {
		return ErrStoreNotReady
	}
	if _, ok := c.entries[key]; !ok {
		return ErrInvalidAPIKey
	}
	return nil
}

// RateLimit returns the limit of key, or 0 when the key is unknown.
func (c *Cache) RateLimit(key string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key].RateLimit
}

// Allows reports whether key may call op.
func (c *Cache) Allows(key, op string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	return len(e.Scope) == 0 || e.Scope[op]
}

// Len returns the number of loaded keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
