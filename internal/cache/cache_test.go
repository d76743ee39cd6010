package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kateleext/hunknav/internal/hunk"
)

const diffA = "diff --git a/a.go b/a.go\n@@ -1 +1 @@\n@@ -10,0 +11,2 @@\n"
const diffB = "diff --git a/b.go b/b.go\n@@ -4,2 +4,0 @@\n"

type fetchResult struct {
	raw string
	err error
}

// scriptedSource returns queued results in order, repeating the last one
type scriptedSource struct {
	mu      sync.Mutex
	results map[hunk.Scope][]fetchResult
	calls   map[hunk.Scope]int
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{
		results: map[hunk.Scope][]fetchResult{},
		calls:   map[hunk.Scope]int{},
	}
}

func (s *scriptedSource) push(scope hunk.Scope, raw string, err error) *scriptedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[scope] = append(s.results[scope], fetchResult{raw: raw, err: err})
	return s
}

func (s *scriptedSource) Fetch(ctx context.Context, scope hunk.Scope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[scope]++
	queue := s.results[scope]
	if len(queue) == 0 {
		return "", nil
	}
	r := queue[0]
	if len(queue) > 1 {
		s.results[scope] = queue[1:]
	}
	return r.raw, r.err
}

func (s *scriptedSource) count(scope hunk.Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[scope]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// manualSpawner queues background tasks until the test runs them
type manualSpawner struct {
	mu    sync.Mutex
	tasks []func()
}

func (s *manualSpawner) Spawn(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, f)
}

func (s *manualSpawner) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualSpawner) RunAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, f := range tasks {
		f()
	}
}

func newTestCache(src Source, ttl time.Duration) (*Cache, *fakeClock, *manualSpawner) {
	clock := newFakeClock()
	spawner := &manualSpawner{}
	c := New(src, WithTTL(ttl), WithClock(clock.Now), WithSpawner(spawner.Spawn))
	return c, clock, spawner
}

func TestCache_FirstGetFetchesSynchronously(t *testing.T) {
	src := newScriptedSource().push(hunk.ScopeLocal, diffA, nil)
	c, clock, spawner := newTestCache(src, 10*time.Second)

	hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)

	require.NoError(t, err)
	require.Len(t, hunks, 2)
	assert.Equal(t, hunk.Hunk{File: "a.go", Line: 11, EndLine: 12, Kind: hunk.KindAdd}, hunks[1])
	assert.Equal(t, 1, src.count(hunk.ScopeLocal))
	assert.Zero(t, spawner.Len())

	snap := c.Snapshot(hunk.ScopeLocal)
	assert.Equal(t, clock.Now(), snap.FetchedAt)
	assert.False(t, snap.Refreshing)
	assert.False(t, snap.Stale)
}

func TestCache_FreshEntryDoesNotFetch(t *testing.T) {
	src := newScriptedSource().push(hunk.ScopeLocal, diffA, nil)
	c, clock, spawner := newTestCache(src, 10*time.Second)

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)

	clock.Advance(9 * time.Second)
	for i := 0; i < 5; i++ {
		hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)
		require.NoError(t, err)
		assert.Len(t, hunks, 2)
	}

	assert.Equal(t, 1, src.count(hunk.ScopeLocal))
	assert.Zero(t, spawner.Len())
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	src := newScriptedSource().push(hunk.ScopeLocal, diffA, nil)
	c, clock, spawner := newTestCache(src, 0)

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)

	require.NoError(t, err)
	assert.Len(t, hunks, 2)
	assert.Equal(t, 1, src.count(hunk.ScopeLocal))
	assert.Zero(t, spawner.Len())
	assert.False(t, c.Snapshot(hunk.ScopeLocal).Stale)
}

func TestCache_StaleServesCachedAndRefreshesOnce(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, diffA, nil).
		push(hunk.ScopeLocal, diffB, nil)
	c, clock, spawner := newTestCache(src, 10*time.Second)

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	clock.Advance(10 * time.Second)

	first, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	assert.Len(t, first, 2, "stale hunks are returned synchronously")
	assert.Equal(t, 1, spawner.Len())
	assert.True(t, c.Snapshot(hunk.ScopeLocal).Refreshing)
	pending := c.Pending(hunk.ScopeLocal)
	require.NotNil(t, pending)

	second, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, spawner.Len(), "in-flight refresh is not duplicated")
	assert.Equal(t, 1, src.count(hunk.ScopeLocal))

	spawner.RunAll()

	select {
	case <-pending:
	default:
		t.Fatal("pending channel should be closed after refresh")
	}
	assert.Nil(t, c.Pending(hunk.ScopeLocal))

	snap := c.Snapshot(hunk.ScopeLocal)
	assert.False(t, snap.Refreshing)
	assert.False(t, snap.Stale)
	assert.Equal(t, clock.Now(), snap.FetchedAt)
	assert.Equal(t, []hunk.Hunk{{File: "b.go", Line: 4, EndLine: 4, Kind: hunk.KindDelete}}, snap.Hunks)
	assert.Equal(t, 2, src.count(hunk.ScopeLocal))
}

func TestCache_BackgroundFailureKeepsEntry(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, diffA, nil).
		push(hunk.ScopeLocal, "", errors.New("boom"))
	c, clock, spawner := newTestCache(src, time.Second)

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	fetchedAt := c.Snapshot(hunk.ScopeLocal).FetchedAt
	clock.Advance(2 * time.Second)

	hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	assert.Len(t, hunks, 2)

	spawner.RunAll()

	snap := c.Snapshot(hunk.ScopeLocal)
	assert.Len(t, snap.Hunks, 2)
	assert.Equal(t, fetchedAt, snap.FetchedAt)
	assert.False(t, snap.Refreshing)
	assert.True(t, snap.Stale)

	// A later Get may try again
	_, err = c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	assert.Equal(t, 1, spawner.Len())
}

func TestCache_ForceAlwaysFetches(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, diffA, nil).
		push(hunk.ScopeLocal, diffB, nil)
	c, _, spawner := newTestCache(src, time.Hour)

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)

	hunks, err := c.Get(context.Background(), hunk.ScopeLocal, true)

	require.NoError(t, err)
	require.Len(t, hunks, 1)
	assert.Equal(t, "b.go", hunks[0].File)
	assert.Equal(t, 2, src.count(hunk.ScopeLocal))
	assert.Zero(t, spawner.Len())
}

func TestCache_ForceFailureKeepsPriorHunks(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, diffA, nil).
		push(hunk.ScopeLocal, "", errors.New("diff command failed")).
		push(hunk.ScopeLocal, diffB, nil)
	c, _, _ := newTestCache(src, time.Hour)

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	before := c.Snapshot(hunk.ScopeLocal)

	_, err = c.Refresh(context.Background(), hunk.ScopeLocal)
	require.Error(t, err)

	after := c.Snapshot(hunk.ScopeLocal)
	assert.Equal(t, before, after)

	hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err, "only the forced call sees the error")
	assert.Len(t, hunks, 2)
}

func TestCache_FailureFromEmpty(t *testing.T) {
	src := newScriptedSource().push(hunk.ScopeLocal, "", errors.New("not a git repository"))
	c, _, _ := newTestCache(src, time.Hour)

	hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)

	assert.EqualError(t, err, "not a git repository")
	assert.Nil(t, hunks)
	assert.Equal(t, Entry{}, c.Snapshot(hunk.ScopeLocal))
}

func TestCache_EmptyResultRefetchesSynchronously(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, "", nil).
		push(hunk.ScopeLocal, diffA, nil)
	c, _, spawner := newTestCache(src, time.Hour)

	hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	assert.Empty(t, hunks)

	hunks, err = c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	assert.Len(t, hunks, 2)
	assert.Equal(t, 2, src.count(hunk.ScopeLocal))
	assert.Zero(t, spawner.Len())
}

func TestCache_BackgroundResultSupersededByForce(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, diffA, nil). // initial
		push(hunk.ScopeLocal, diffB, nil). // forced
		push(hunk.ScopeLocal, diffA, nil)  // background, started before the force
	c, clock, spawner := newTestCache(src, time.Second)

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	clock.Advance(time.Second)

	_, err = c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	require.Equal(t, 1, spawner.Len())

	forced, err := c.Refresh(context.Background(), hunk.ScopeLocal)
	require.NoError(t, err)
	require.Len(t, forced, 1)

	spawner.RunAll()

	snap := c.Snapshot(hunk.ScopeLocal)
	assert.Equal(t, forced, snap.Hunks)
	assert.False(t, snap.Refreshing)
}

// gatedSource holds its first fetch until release is closed
type gatedSource struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (s *gatedSource) Fetch(ctx context.Context, scope hunk.Scope) (string, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == 1 {
		close(s.started)
		<-s.release
		return "diff --git a/old.go b/old.go\n@@ -1 +1 @@\n", nil
	}
	return "diff --git a/new.go b/new.go\n@@ -1 +1 @@\n", nil
}

func TestCache_ForceDoesNotJoinEarlierFetch(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	c, _, _ := newTestCache(src, time.Hour)

	type result struct {
		hunks []hunk.Hunk
		err   error
	}
	first := make(chan result, 1)
	go func() {
		hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)
		first <- result{hunks, err}
	}()
	<-src.started

	forced, err := c.Get(context.Background(), hunk.ScopeLocal, true)
	require.NoError(t, err)
	require.Len(t, forced, 1)
	assert.Equal(t, "new.go", forced[0].File)

	close(src.release)
	earlier := <-first
	require.NoError(t, earlier.err)

	src.mu.Lock()
	assert.Equal(t, 2, src.calls)
	src.mu.Unlock()

	// The older result does not overwrite the forced one
	snap := c.Snapshot(hunk.ScopeLocal)
	require.Len(t, snap.Hunks, 1)
	assert.Equal(t, "new.go", snap.Hunks[0].File)
	assert.Equal(t, "new.go", earlier.hunks[0].File)
}

func TestCache_InvalidateTriggersRefresh(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, diffA, nil).
		push(hunk.ScopeLocal, diffB, nil)
	c, _, spawner := newTestCache(src, 0)

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)

	c.Invalidate(hunk.ScopeLocal)
	assert.True(t, c.Snapshot(hunk.ScopeLocal).Stale)

	hunks, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	assert.Len(t, hunks, 2)
	require.Equal(t, 1, spawner.Len())

	spawner.RunAll()

	snap := c.Snapshot(hunk.ScopeLocal)
	assert.False(t, snap.Stale)
	assert.Len(t, snap.Hunks, 1)
}

func TestCache_ScopesAreIndependent(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, diffA, nil).
		push(hunk.ScopeRemote, diffB, nil)
	c, clock, spawner := newTestCache(src, time.Second)

	local, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	remote, err := c.Get(context.Background(), hunk.ScopeRemote, false)
	require.NoError(t, err)

	assert.Len(t, local, 2)
	assert.Len(t, remote, 1)

	// Only local is stale
	_, err = c.Get(context.Background(), hunk.ScopeRemote, false)
	require.NoError(t, err)
	assert.Zero(t, spawner.Len())
	_, err = c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	assert.Equal(t, 1, spawner.Len())
	assert.Nil(t, c.Pending(hunk.ScopeRemote))
	assert.NotNil(t, c.Pending(hunk.ScopeLocal))
}

func TestCache_DefaultSpawnerRunsInBackground(t *testing.T) {
	src := newScriptedSource().
		push(hunk.ScopeLocal, diffA, nil).
		push(hunk.ScopeLocal, diffB, nil)
	clock := newFakeClock()
	c := New(src, WithTTL(time.Second), WithClock(clock.Now))

	_, err := c.Get(context.Background(), hunk.ScopeLocal, false)
	require.NoError(t, err)
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = c.Get(ctx, hunk.ScopeLocal, false)
	require.NoError(t, err)
	pending := c.Pending(hunk.ScopeLocal)
	cancel()

	if pending != nil {
		select {
		case <-pending:
		case <-time.After(2 * time.Second):
			t.Fatal("background refresh did not finish")
		}
	}

	assert.Len(t, c.Snapshot(hunk.ScopeLocal).Hunks, 1)
}
