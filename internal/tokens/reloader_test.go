package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRepo serves the tables queued with push; the last one repeats.
type scriptedRepo struct {
	mu     sync.Mutex
	tables []map[string]Entry
	errs   []error
	calls  atomic.Int32
}

func (r *scriptedRepo) push(m map[string]Entry, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = append(r.tables, m)
	r.errs = append(r.errs, err)
}

func (r *scriptedRepo) LoadTokens(context.Context) (map[string]Entry, error) {
	r.calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tables) == 0 {
		return nil, errors.New("no table")
	}
	m, err := r.tables[0], r.errs[0]
	if len(r.tables) > 1 {
		r.tables, r.errs = r.tables[1:], r.errs[1:]
	}
	return m, err
}

func TestReloader_LoadOnceAppliesScopes(t *testing.T) {
	repo := &scriptedRepo{}
	repo.push(map[string]Entry{
		"ci-bot":  {RateLimit: 30, Scope: Scope{"render": true}},
		"monitor": {Scope: Scope{"status": true}},
		"admin":   {RateLimit: 100},
	}, nil)
	keys := NewCache()

	require.NoError(t, NewReloader(repo, keys, time.Hour).LoadOnce(context.Background()))
	require.True(t, keys.Ready())

	assert.True(t, keys.Allows("ci-bot", "render"))
	assert.False(t, keys.Allows("ci-bot", "validate"))
	assert.True(t, keys.Allows("monitor", "status"))
	assert.False(t, keys.Allows("monitor", "render"))
	for _, op := range []string{"render", "validate", "status"} {
		assert.True(t, keys.Allows("admin", op), "empty scope allows %s", op)
	}
	assert.False(t, keys.Allows("stranger", "status"))
}

func TestReloader_FirstLoadFailureLeavesStoreNotReady(t *testing.T) {
	repo := &scriptedRepo{}
	repo.push(nil, errors.New("connection refused"))
	keys := NewCache()

	err := NewReloader(repo, keys, time.Hour).LoadOnce(context.Background())
	require.Error(t, err)
	assert.False(t, keys.Ready())
	assert.ErrorIs(t, keys.Validate("ci-bot"), ErrStoreNotReady)
}

func TestReloader_FailedReloadKeepsScopes(t *testing.T) {
	repo := &scriptedRepo{}
	repo.push(map[string]Entry{"ci-bot": {RateLimit: 30, Scope: Scope{"render": true}}}, nil)
	repo.push(nil, errors.New("db unavailable"))
	keys := NewCache()
	r := NewReloader(repo, keys, time.Hour)

	require.NoError(t, r.LoadOnce(context.Background()))
	require.Error(t, r.LoadOnce(context.Background()))

	assert.NoError(t, keys.Validate("ci-bot"))
	assert.Equal(t, 30, keys.RateLimit("ci-bot"))
	assert.True(t, keys.Allows("ci-bot", "render"))
}

func TestReloader_LoadOnceIsBounded(t *testing.T) {
	var deadline time.Time
	repo := repoFunc(func(ctx context.Context) (map[string]Entry, error) {
		deadline, _ = ctx.Deadline()
		return map[string]Entry{}, nil
	})

	require.NoError(t, NewReloader(repo, NewCache(), time.Hour).LoadOnce(context.Background()))
	assert.WithinDuration(t, time.Now().Add(loadTimeout), deadline, time.Second)
}

type repoFunc func(ctx context.Context) (map[string]Entry, error)

func (f repoFunc) LoadTokens(ctx context.Context) (map[string]Entry, error) { return f(ctx) }

func TestReloader_StartPicksUpRevocations(t *testing.T) {
	repo := &scriptedRepo{}
	repo.push(map[string]Entry{
		"ci-bot": {Scope: Scope{"render": true, "validate": true}},
		"old":    {},
	}, nil)
	repo.push(nil, errors.New("transient"))
	repo.push(map[string]Entry{"ci-bot": {Scope: Scope{"validate": true}}}, nil)
	keys := NewCache()
	r := NewReloader(repo, keys, 10*time.Millisecond)

	require.NoError(t, r.LoadOnce(context.Background()))
	require.True(t, keys.Allows("ci-bot", "render"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	require.Eventually(t, func() bool { return !keys.Allows("ci-bot", "render") }, time.Second, 5*time.Millisecond)
	assert.True(t, keys.Allows("ci-bot", "validate"))
	assert.ErrorIs(t, keys.Validate("old"), ErrInvalidAPIKey)
}

func TestReloader_StartStopsWithContext(t *testing.T) {
	repo := &scriptedRepo{}
	repo.push(map[string]Entry{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	NewReloader(repo, NewCache(), 5*time.Millisecond).Start(ctx)

	require.Eventually(t, func() bool { return repo.calls.Load() > 0 }, time.Second, time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	stopped := repo.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, repo.calls.Load())
}
