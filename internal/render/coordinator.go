package render

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"umlrender/internal/domain"
	"umlrender/internal/infra/logging"
	"umlrender/internal/infra/metrics"
)

// Coordinator runs units of work off the caller's goroutine and owns the
// process-wide active-operation counter and start timestamp.
type Coordinator struct {
	active  atomic.Int64
	started time.Time
	timeout time.Duration
	// sem bounds in-flight operations; nil means unbounded.
	sem *semaphore.Weighted
}

// NewCoordinator creates a coordinator. maxConcurrent <= 0 leaves operations
// unbounded; timeout <= 0 disables the per-operation deadline.
func NewCoordinator(maxConcurrent int, timeout time.Duration) *Coordinator {
	c := &Coordinator{started: time.Now(), timeout: timeout}
	if maxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return c
}

// Active returns the number of operations that have been submitted and whose
// work has not finished yet.
func (c *Coordinator) Active() int64 { return c.active.Load() }

// StartedAt returns the time the coordinator was created.
func (c *Coordinator) StartedAt() time.Time { return c.started }

// Timeout returns the per-operation deadline.
func (c *Coordinator) Timeout() time.Duration { return c.timeout }

func (c *Coordinator) enter() {
	c.active.Add(1)
	metrics.ActiveOperations.Inc()
}

func (c *Coordinator) leave() {
	c.active.Add(-1)
	metrics.ActiveOperations.Dec()
}

// Handle resolves to the outcome of a submitted operation.
type Handle[T any] struct {
	done    chan struct{}
	val     T
	err     error
	elapsed time.Duration
}

func newHandle[T any]() *Handle[T] {
	return &Handle[T]{done: make(chan struct{})}
}

// Failed returns a handle that is already resolved with err.
func Failed[T any](err error) *Handle[T] {
	h := newHandle[T]()
	h.err = err
	close(h.done)
	return h
}

func (h *Handle[T]) resolve(val T, err error, elapsed time.Duration) {
	h.val, h.err, h.elapsed = val, err, elapsed
	close(h.done)
}

// Done is closed once the handle is resolved.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Await waits for the outcome or for ctx to end. Abandoning a handle does not
// stop the operation.
func (h *Handle[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.val, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Elapsed is the time from dispatch to resolution. It is zero until Done.
func (h *Handle[T]) Elapsed() time.Duration {
	select {
	case <-h.done:
		return h.elapsed
	default:
		return 0
	}
}

// timed results receive the measured duration before the handle resolves.
type timed[T any] interface {
	WithRenderTime(time.Duration) T
}

// Submit schedules fn and returns immediately. The active counter is raised
// before dispatch and lowered when fn has returned, on every path. When the
// deadline expires the handle resolves with RENDER_TIMEOUT right away; fn is
// left to observe its context.
func Submit[T any](c *Coordinator, ctx context.Context, op string, fn func(context.Context) (T, error)) *Handle[T] {
	h := newHandle[T]()
	c.enter()
	dispatched := time.Now()

	go func() {
		defer c.leave()

		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		defer cancel()

		finish := func(val T, err error) {
			elapsed := time.Since(dispatched)
			if err == nil {
				if t, ok := any(val).(timed[T]); ok {
					val = t.WithRenderTime(elapsed)
				}
			}
			observe(op, err, elapsed)
			h.resolve(val, err, elapsed)
		}

		var zero T
		if c.sem != nil {
			if err := c.sem.Acquire(runCtx, 1); err != nil {
				finish(zero, c.contextFailure(op, runCtx.Err(), err))
				return
			}
			defer c.sem.Release(1)
		}

		type outcome struct {
			val T
			err error
		}
		results := make(chan outcome, 1)
		go func() {
			var o outcome
			defer func() {
				if r := recover(); r != nil {
					logging.Error("Operation panicked", "op", op, "panic", fmt.Sprint(r))
					o = outcome{err: fmt.Errorf("%s panicked: %v", op, r)}
				}
				results <- o
			}()
			o.val, o.err = fn(runCtx)
		}()

		select {
		case o := <-results:
			err := o.err
			if err != nil && runCtx.Err() != nil {
				err = c.contextFailure(op, runCtx.Err(), err)
			}
			finish(o.val, err)
		case <-runCtx.Done():
			finish(zero, c.contextFailure(op, runCtx.Err(), nil))
			<-results
		}
	}()

	return h
}

// contextFailure classifies an operation that ended because its context did.
func (c *Coordinator) contextFailure(op string, ctxErr, cause error) error {
	if cause == nil {
		cause = ctxErr
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		msg := fmt.Sprintf("PlantUML %s took too long", op)
		if c.timeout > 0 {
			msg = fmt.Sprintf("PlantUML %s exceeded %s", op, c.timeout)
		}
		return domain.WrapError(domain.KindRenderTimeout, msg, cause)
	}
	return domain.WrapError(domain.KindInternal, "Operation cancelled", cause)
}

func observe(op string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = string(domain.KindOf(err))
	}
	metrics.OperationsTotal.WithLabelValues(op, result).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
