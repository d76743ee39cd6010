package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/kateleext/hunknav/internal/hunk"
)

// Source yields raw unified diff text for a scope
type Source interface {
	Fetch(ctx context.Context, scope hunk.Scope) (string, error)
}

// Entry is a read-only copy of one scope's cache state
type Entry struct {
	Hunks      []hunk.Hunk
	FetchedAt  time.Time
	Refreshing bool
	Stale      bool
}

type entry struct {
	hunks       []hunk.Hunk
	fetchedAt   time.Time
	invalidated bool
	refreshing  bool
	done        chan struct{} // closed when the in-flight refresh finishes
	gen         uint64        // bumped on every stored result
}

// Cache holds parsed hunks per scope with a time-to-live.
// Stale entries are served immediately while at most one background refresh per
// scope brings them up to date.
type Cache struct {
	src   Source
	ttl   time.Duration
	now   func() time.Time
	spawn func(func())
	log   zerolog.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[hunk.Scope]*entry
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL sets how long fetched hunks stay fresh. Zero means they never expire.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithSpawner replaces how background refreshes are started (default: a goroutine)
func WithSpawner(spawn func(func())) Option {
	return func(c *Cache) { c.spawn = spawn }
}

// WithLogger sets the logger used for background refresh outcomes
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.log = logger }
}

// New creates an empty cache reading from src
func New(src Source, opts ...Option) *Cache {
	c := &Cache{
		src:     src,
		now:     time.Now,
		spawn:   func(f func()) { go f() },
		log:     zerolog.Nop(),
		entries: make(map[hunk.Scope]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "cache").Logger()
	return c
}

// Get returns the hunks for scope.
// With force, or when nothing is cached, it fetches synchronously and returns any
// fetch error. Otherwise it returns the cached hunks, starting a background
// refresh first if they are stale. The returned slice must not be modified.
func (c *Cache) Get(ctx context.Context, scope hunk.Scope, force bool) ([]hunk.Hunk, error) {
	c.mu.Lock()
	e := c.entryLocked(scope)

	if force || len(e.hunks) == 0 {
		c.mu.Unlock()
		return c.fetch(ctx, scope, force)
	}

	hunks := e.hunks
	var task func()
	if c.staleLocked(e) {
		task = c.beginRefreshLocked(ctx, scope, e)
	}
	c.mu.Unlock()

	if task != nil {
		c.spawn(task)
	}
	return hunks, nil
}

// Refresh synchronously refetches scope regardless of age
func (c *Cache) Refresh(ctx context.Context, scope hunk.Scope) ([]hunk.Hunk, error) {
	return c.Get(ctx, scope, true)
}

// Invalidate marks scope stale so the next Get starts a background refresh
func (c *Cache) Invalidate(scope hunk.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryLocked(scope).invalidated = true
}

// Pending returns a channel closed when scope's in-flight background refresh
// finishes, or nil when none is running.
func (c *Cache) Pending(scope hunk.Scope) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[scope]; ok && e.done != nil {
		return e.done
	}
	return nil
}

// Snapshot returns a copy of scope's current state
func (c *Cache) Snapshot(scope hunk.Scope) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[scope]
	if !ok {
		return Entry{}
	}
	return Entry{
		Hunks:      slices.Clone(e.hunks),
		FetchedAt:  e.fetchedAt,
		Refreshing: e.refreshing,
		Stale:      len(e.hunks) > 0 && c.staleLocked(e),
	}
}

// fetch runs a synchronous fetch; concurrent callers for one scope share it.
// A forced fetch never joins a call that started before it, and a shared
// fetch does not store its result over data a newer fetch already stored.
func (c *Cache) fetch(ctx context.Context, scope hunk.Scope, force bool) ([]hunk.Hunk, error) {
	key := scope.String()
	if force {
		c.group.Forget(key)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		gen := c.entryLocked(scope).gen
		c.mu.Unlock()

		raw, err := c.src.Fetch(ctx, scope)
		if err != nil {
			return nil, err
		}
		hunks := hunk.Parse(raw)

		c.mu.Lock()
		defer c.mu.Unlock()
		e := c.entryLocked(scope)
		if !force && e.gen != gen {
			c.log.Debug().Str("scope", key).Msg("fetch superseded by a newer fetch")
			return slices.Clone(e.hunks), nil
		}
		c.storeLocked(e, hunks)
		return hunks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]hunk.Hunk), nil
}

// beginRefreshLocked flags scope as refreshing and returns the task to spawn,
// or nil when a refresh is already in flight.
func (c *Cache) beginRefreshLocked(ctx context.Context, scope hunk.Scope, e *entry) func() {
	if e.refreshing {
		return nil
	}
	e.refreshing = true
	e.done = make(chan struct{})

	gen, done := e.gen, e.done
	bgCtx := context.WithoutCancel(ctx)
	return func() { c.refresh(bgCtx, scope, gen, done) }
}

// refresh is the background half of a stale Get
func (c *Cache) refresh(ctx context.Context, scope hunk.Scope, gen uint64, done chan struct{}) {
	raw, err := c.src.Fetch(ctx, scope)
	var hunks []hunk.Hunk
	if err == nil {
		hunks = hunk.Parse(raw)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(scope)
	switch {
	case err != nil:
		c.log.Warn().Err(err).Str("scope", scope.String()).Msg("background refresh failed")
	case e.gen != gen:
		// A synchronous fetch landed while this one ran; its data is newer
		c.log.Debug().Str("scope", scope.String()).Msg("background refresh superseded")
	default:
		c.storeLocked(e, hunks)
		c.log.Debug().Str("scope", scope.String()).Int("hunks", len(hunks)).Msg("background refresh applied")
	}

	e.refreshing = false
	e.done = nil
	close(done)
}

func (c *Cache) storeLocked(e *entry, hunks []hunk.Hunk) {
	e.hunks = hunks
	e.fetchedAt = c.now()
	e.invalidated = false
	e.gen++
}

func (c *Cache) staleLocked(e *entry) bool {
	if e.invalidated {
		return true
	}
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(e.fetchedAt) >= c.ttl
}

func (c *Cache) entryLocked(scope hunk.Scope) *entry {
	e, ok := c.entries[scope]
	if !ok {
		e = &entry{}
		c.entries[scope] = e
	}
	return e
}
