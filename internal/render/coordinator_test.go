package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"umlrender/internal/domain"
)

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Active() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSubmit_ReturnsBeforeWorkFinishes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewCoordinator(0, 0)
	release := make(chan struct{})
	h := Submit(c, context.Background(), "render", func(context.Context) (string, error) {
		<-release
		return "done", nil
	})

	select {
	case <-h.Done():
		t.Fatal("handle resolved before work finished")
	default:
	}
	assert.EqualValues(t, 1, c.Active())

	close(release)
	v, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	waitIdle(t, c)
}

func TestSubmit_CounterReturnsToBaselineOnEveryPath(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewCoordinator(0, 50*time.Millisecond)
	fns := []func(context.Context) (int, error){
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (int, error) { return 0, errors.New("boom") },
		func(context.Context) (int, error) { panic("kaboom") },
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		fn := fns[i%len(fns)]
		h := Submit(c, context.Background(), "render", fn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Await(context.Background())
		}()
	}
	wg.Wait()
	waitIdle(t, c)
}

func TestSubmit_PanicBecomesInternalError(t *testing.T) {
	c := NewCoordinator(0, 0)
	h := Submit(c, context.Background(), "render", func(context.Context) (int, error) { panic("nil map") })

	_, err := h.Await(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	waitIdle(t, c)
}

func TestSubmit_PreservesClassifiedFailures(t *testing.T) {
	c := NewCoordinator(0, 0)
	want := domain.NewError(domain.KindRender, "Failed to render PlantUML diagram: exit status 1")
	h := Submit(c, context.Background(), "render", func(context.Context) (int, error) { return 0, want })

	_, err := h.Await(context.Background())
	assert.Same(t, want, err)
}

func TestSubmit_DeadlineResolvesWithRenderTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewCoordinator(0, 20*time.Millisecond)
	release := make(chan struct{})
	h := Submit(c, context.Background(), "render", func(context.Context) (int, error) {
		<-release // ignores its context
		return 1, nil
	})

	_, err := h.Await(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRenderTimeout)
	assert.Equal(t, 408, domain.KindOf(err).HTTPStatus())

	// the work is still running, so it is still counted
	assert.EqualValues(t, 1, c.Active())
	close(release)
	waitIdle(t, c)
}

func TestSubmit_CallerCancellationIsInternal(t *testing.T) {
	c := NewCoordinator(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	h := Submit(c, ctx, "validate", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	cancel()

	_, err := h.Await(context.Background())
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	waitIdle(t, c)
}

func TestSubmit_MaxConcurrentBoundsExecution(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewCoordinator(2, 0)
	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})

	handles := make([]*Handle[int], 6)
	for i := range handles {
		handles[i] = Submit(c, context.Background(), "render", func(context.Context) (int, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			<-release
			mu.Lock()
			running--
			mu.Unlock()
			return 1, nil
		})
	}

	// every submission is counted even while waiting for a slot
	assert.EqualValues(t, 6, c.Active())
	time.Sleep(30 * time.Millisecond)
	close(release)
	for _, h := range handles {
		_, err := h.Await(context.Background())
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, peak, 2)
	waitIdle(t, c)
}

func TestSubmit_AttachesRenderTime(t *testing.T) {
	c := NewCoordinator(0, 0)
	h := Submit(c, context.Background(), "render", func(context.Context) (domain.RenderResult, error) {
		time.Sleep(15 * time.Millisecond)
		return domain.RenderResult{ImageBytes: []byte("x"), Format: domain.FormatPNG}, nil
	})

	res, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.RenderTimeMs, int64(10))
	assert.GreaterOrEqual(t, h.Elapsed(), 10*time.Millisecond)
}

func TestHandle_AwaitHonorsContext(t *testing.T) {
	c := NewCoordinator(0, 0)
	release := make(chan struct{})
	h := Submit(c, context.Background(), "render", func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, h.Elapsed())

	close(release)
	v, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFailed_IsResolved(t *testing.T) {
	h := Failed[int](domain.ErrInvalidInput)
	select {
	case <-h.Done():
	default:
		t.Fatal("expected resolved handle")
	}
	_, err := h.Await(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
