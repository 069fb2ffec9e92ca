package plantuml

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolDisabled is returned by NewPool for a non-positive size.
var ErrPoolDisabled = errors.New("engine pool disabled")

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("engine pool closed")

// Pool bounds the number of concurrent engine calls. A token in sem is one
// free slot.
type Pool struct {
	mu     sync.Mutex
	sem    chan struct{}
	closed bool

	acquired atomic.Int64
	waited   atomic.Int64
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Enabled  bool  `json:"enabled"`
	Capacity int   `json:"capacity"`
	Idle     int   `json:"idle"`
	InUse    int   `json:"in_use"`
	Acquired int64 `json:"acquired_total"`
	Waited   int64 `json:"waited_total"`
}

// NewPool creates a pool with size slots.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, ErrPoolDisabled
	}
	p := &Pool{sem: make(chan struct{}, size)}
	for i := 0; i < size; i++ {
		p.sem <- struct{}{}
	}
	return p, nil
}

// Acquire takes a slot, waiting until one is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-p.sem:
		p.acquired.Add(1)
		return nil
	default:
	}

	p.waited.Add(1)
	select {
	case <-p.sem:
		p.acquired.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (p *Pool) Release() {
	select {
	case p.sem <- struct{}{}:
	default:
		// more releases than acquires; drop the token
	}
}

// Close rejects further acquires. It is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Stats reports capacity and usage.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	capacity := cap(p.sem)
	idle := len(p.sem)
	return PoolStats{
		Enabled:  !closed && capacity > 0,
		Capacity: capacity,
		Idle:     idle,
		InUse:    capacity - idle,
		Acquired: p.acquired.Load(),
		Waited:   p.waited.Load(),
	}
}
