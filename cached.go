package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"
)

// CachedQuery orchestrates cache-or-execute for a single query. It binds the
// query's identity, a backend resolver, and a caching Config.
//
// A CachedQuery is reusable across sequential calls. Its in-flight guard is
// the only mutable state; everything else is immutable after construction.
type CachedQuery struct {
	query    Query
	resolver Resolver
	cfg      Config
	observer Observer
	inFlight atomic.Bool
}

// New binds a query to a resolver and caching configuration.
//
// Example: cache a fetch for a minute
//
//	reg := querycache.NewRegistry().Register("memory", querycache.NewMemoryStore(ctx))
//	q := querycache.StaticQuery{Conn: "main", Text: "SELECT * FROM users WHERE id=?", Args: []any{5}}
//	cached := querycache.New(q, reg, querycache.Config{}.CacheFor(time.Minute).CacheTags("users"))
//	body, err := cached.GetCachedResult(ctx, querycache.OpGet, "", execute)
func New(query Query, resolver Resolver, cfg Config) *CachedQuery {
	return &CachedQuery{query: query, resolver: resolver, cfg: cfg}
}

// WithObserver attaches an observer to receive operation events.
func (c *CachedQuery) WithObserver(o Observer) *CachedQuery {
	c.observer = o
	return c
}

// Config returns the caching configuration in effect.
func (c *CachedQuery) Config() Config { return c.cfg }

// Key returns the full cache key this query would be stored under.
func (c *CachedQuery) Key(op Operation, rowID string) string {
	return c.cfg.Prefix() + ":" + CacheKey(c.query, op, rowID, c.cfg.suffix, c.cfg.Format())
}

// GetCachedResult returns the cached result for this query, executing fn and
// storing its result on a miss. When caching is suppressed, or when called
// re-entrantly from inside fn, it executes fn directly.
//
// fn's errors propagate unchanged; the cache layer adds no retry and no
// timeout of its own.
func (c *CachedQuery) GetCachedResult(ctx context.Context, op Operation, rowID string, fn ExecFunc) ([]byte, error) {
	if fn == nil {
		return nil, errors.New("querycache: get cached result requires an execution callback")
	}
	if !c.cfg.Enabled() || c.inFlight.Load() {
		return fn(ctx)
	}

	key := c.Key(op, rowID)
	backend, err := c.resolver.Driver(c.cfg.DriverName())
	if err != nil {
		return nil, err
	}
	if tags := c.cfg.allTags(); len(tags) > 0 && backend.SupportsTags() {
		backend = backend.WithTags(tags...)
	}

	// Executions triggered from inside fn must not re-enter the cache:
	// the guard flips before fn runs and resets when it returns.
	executed := false
	thunk := func(ctx context.Context) ([]byte, error) {
		executed = true
		c.inFlight.Store(true)
		defer c.inFlight.Store(false)
		return fn(ctx)
	}

	start := time.Now()
	ttl, forever, expired := c.resolveExpiry(time.Now())
	var body []byte
	switch {
	case expired:
		body, err = thunk(ctx)
	case forever:
		body, err = backend.RememberForever(ctx, key, thunk)
	default:
		body, err = backend.Remember(ctx, key, ttl, thunk)
	}
	c.observe(ctx, "get_cached", key, err == nil && !executed, err, start, backend.Driver())
	return body, err
}

// resolveExpiry maps the configured duration onto the backend's remember
// primitives. A positive ttl or future absolute instant uses the ttl form;
// the forever sentinel and non-positive durations use the no-expiry form.
// An absolute instant already in the past caches nothing.
func (c *CachedQuery) resolveExpiry(now time.Time) (ttl time.Duration, forever, expired bool) {
	if c.cfg.forever {
		return 0, true, false
	}
	if !c.cfg.until.IsZero() {
		ttl = c.cfg.until.Sub(now)
		if ttl <= 0 {
			return 0, false, true
		}
		return ttl, false, false
	}
	if c.cfg.ttl <= 0 {
		return 0, true, false
	}
	return c.cfg.ttl, false, false
}

// FlushTags invalidates every entry stored under the given tags, one backend
// call per tag. An empty argument substitutes the configured base tags. It
// reports false when the backend cannot tag or any individual flush fails;
// a failed tag never stops the remaining tags.
func (c *CachedQuery) FlushTags(ctx context.Context, tags ...string) bool {
	set := dedupeTags(nil, tags)
	if len(set) == 0 {
		set = c.cfg.BaseTags()
	}
	if len(set) == 0 {
		return false
	}
	backend, err := c.resolver.Driver(c.cfg.DriverName())
	if err != nil || !backend.SupportsTags() {
		return false
	}
	flushed := true
	for _, tag := range set {
		start := time.Now()
		ok := backend.FlushTag(ctx, tag)
		c.observe(ctx, "flush_tag", tag, ok, nil, start, backend.Driver())
		if !ok {
			flushed = false
		}
	}
	return flushed
}

// FlushForTable is a convenience for write paths: it does nothing when given
// no tags and otherwise delegates to FlushTags.
func (c *CachedQuery) FlushForTable(ctx context.Context, tags ...string) bool {
	if len(tags) == 0 {
		return false
	}
	return c.FlushTags(ctx, tags...)
}

// GetCachedJSON caches a typed result, JSON-encoding it for storage.
func GetCachedJSON[T any](ctx context.Context, c *CachedQuery, op Operation, rowID string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, errors.New("querycache: get cached json requires an execution callback")
	}
	body, err := c.GetCachedResult(ctx, op, rowID, func(ctx context.Context) ([]byte, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, err
	}
	return out, nil
}

func (c *CachedQuery) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time, driver Driver) {
	if c.observer == nil {
		return
	}
	c.observer.OnQueryCacheOp(ctx, op, key, hit, err, time.Since(start), driver)
}
