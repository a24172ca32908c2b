// Package cache is the process-wide store of server-owned entities. Reads
// are coalesced per key and served from cache inside a freshness window;
// writes go through Mutation, which snapshots, applies speculatively and
// restores on failure.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/livia-app/livia/internal/apperr"
)

const (
	defaultStaleTime  = 30 * time.Second
	defaultGCTime     = 5 * time.Minute
	defaultRetry      = 2
	defaultRetryDelay = 500 * time.Millisecond
)

type call struct {
	done     chan struct{}
	cancel   context.CancelFunc
	value    any
	err      error
	detached bool
}

type entry struct {
	key        Key
	value      any
	has        bool
	stale      bool
	updatedAt  time.Time
	accessedAt time.Time
	call       *call
}

// Client holds cached entries. The zero value is not usable; use New.
type Client struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64

	staleTime  time.Duration
	gcTime     time.Duration
	retry      int
	retryDelay time.Duration
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithStaleTime sets how long a fetched value is served without refetching.
func WithStaleTime(d time.Duration) Option {
	return func(c *Client) { c.staleTime = d }
}

// WithGCTime sets how long an unread entry is retained.
func WithGCTime(d time.Duration) Option {
	return func(c *Client) { c.gcTime = d }
}

// WithRetry sets the number of retries after a failed network read.
func WithRetry(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retry = n
		}
	}
}

// WithRetryDelay sets the base backoff delay; attempt n waits base*2^n.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a cache Client.
func New(opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		entries:    make(map[string]*entry),
		staleTime:  defaultStaleTime,
		gcTime:     defaultGCTime,
		retry:      defaultRetry,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetcher loads the authoritative value for a key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Fetch returns the cached value for key when fresh. Otherwise it joins the
// in-flight fetch for key, starting one if needed. Errors are normalized.
func Fetch[T any](ctx context.Context, c *Client, key Key, fetch Fetcher[T]) (T, error) {
	var zero T

	c.mu.Lock()
	e := c.entryLocked(key)
	now := c.now()
	e.accessedAt = now
	if e.has && !e.stale && now.Sub(e.updatedAt) < c.staleTime {
		v, _ := e.value.(T)
		c.mu.Unlock()
		return v, nil
	}
	cl := e.call
	if cl == nil {
		cl = c.startLocked(e, func(ctx context.Context) (any, error) { return fetch(ctx) })
	}
	c.mu.Unlock()

	select {
	case <-cl.done:
	case <-ctx.Done():
		return zero, apperr.Normalize(ctx.Err())
	}

	if cl.detached {
		// The fetch was cancelled by a write; readers see whatever the
		// cache holds now.
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.entries[key.String()]; ok && cur.has {
			v, _ := cur.value.(T)
			return v, nil
		}
		return zero, apperr.ErrCanceled
	}
	if cl.err != nil {
		return zero, cl.err
	}
	v, _ := cl.value.(T)
	return v, nil
}

// Peek returns the cached value for key without fetching.
func Peek[T any](c *Client, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	e, ok := c.entries[key.String()]
	if !ok || !e.has {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// IsStale reports whether key is absent, invalidated or past its freshness window.
func (c *Client) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.has {
		return true
	}
	return e.stale || c.now().Sub(e.updatedAt) >= c.staleTime
}

// Set writes v for key and marks it fresh.
func (c *Client) Set(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.value = v
	e.has = true
	e.stale = false
	e.updatedAt = c.now()
}

// Update replaces the value for key with fn(old). It does nothing when no
// value of type T is cached.
func Update[T any](c *Client, key Key, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.has {
		return false
	}
	old, ok := e.value.(T)
	if !ok {
		return false
	}
	e.value = fn(old)
	e.updatedAt = c.now()
	return true
}

// UpdateAll applies fn to every cached value of type T under prefix.
func UpdateAll[T any](c *Client, prefix Key, fn func(Key, T) T) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := c.now()
	for _, e := range c.entries {
		if !e.has || !e.key.HasPrefix(prefix) {
			continue
		}
		old, ok := e.value.(T)
		if !ok {
			continue
		}
		e.value = fn(e.key, old)
		e.updatedAt = now
		n++
	}
	return n
}

// Remove drops the cached value for key and detaches any fetch in flight.
func (c *Client) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return
	}
	c.detachLocked(e)
	delete(c.entries, key.String())
}

// Cancel detaches every in-flight fetch under prefixes. A detached fetch
// can no longer write its result.
func (c *Client) Cancel(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if matchesAny(e.key, prefixes) {
			c.detachLocked(e)
		}
	}
}

// Invalidate marks every entry under prefixes as stale and detaches
// their in-flight fetches, so the next read fetches anew.
func (c *Client) Invalidate(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if matchesAny(e.key, prefixes) {
			e.stale = true
			c.detachLocked(e)
		}
	}
}

// Clear drops every entry and detaches every fetch in flight. Snapshots
// taken before Clear no longer restore.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		c.detachLocked(e)
	}
	c.entries = make(map[string]*entry)
	c.gen++
}

// Len returns the number of entries, including those without a value.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Start runs the idle-eviction loop until ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	interval := c.gcTime / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Debug("cache collector started", "gcTime", c.gcTime)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("cache collector stopped")
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if n := c.Collect(); n > 0 {
				slog.Debug("cache entries evicted", "count", n)
			}
		}
	}
}

// Collect evicts entries idle for longer than the retention window and
// returns how many were removed. Entries with a fetch in flight stay.
func (c *Client) Collect() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.call != nil {
			continue
		}
		if now.Sub(e.accessedAt) > c.gcTime {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Close cancels all in-flight fetches and waits for them to return.
func (c *Client) Close() {
	c.mu.Lock()
	for _, e := range c.entries {
		c.detachLocked(e)
	}
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Client) entryLocked(key Key) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: append(Key(nil), key...), accessedAt: c.now()}
		c.entries[k] = e
	}
	return e
}

func (c *Client) startLocked(e *entry, fetch func(context.Context) (any, error)) *call {
	ctx, cancel := context.WithCancel(c.ctx)
	cl := &call{done: make(chan struct{}), cancel: cancel}
	e.call = cl

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		v, err := c.attempt(ctx, fetch)

		c.mu.Lock()
		defer c.mu.Unlock()
		if cl.detached {
			close(cl.done)
			return
		}
		e.call = nil
		if err != nil {
			cl.err = err
		} else {
			cl.value = v
			e.value = v
			e.has = true
			e.stale = false
			e.updatedAt = c.now()
		}
		close(cl.done)
	}()
	return cl
}

func (c *Client) attempt(ctx context.Context, fetch func(context.Context) (any, error)) (any, error) {
	for n := 0; ; n++ {
		v, err := fetch(ctx)
		if err == nil {
			return v, nil
		}
		ae := apperr.Normalize(err)
		if !ae.Kind.Retryable() || n >= c.retry || errors.Is(ctx.Err(), context.Canceled) {
			return nil, ae
		}

		timer := time.NewTimer(c.retryDelay << n)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperr.Normalize(ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Client) detachLocked(e *entry) {
	if e.call == nil {
		return
	}
	e.call.detached = true
	e.call.cancel()
	e.call = nil
}
