package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrUnknownDriver is returned when resolving a backend name that was never
// registered.
var ErrUnknownDriver = errors.New("querycache: unknown cache driver")

// Resolver supplies backends by name. The orchestrator receives one at
// construction instead of reaching into process-wide state.
type Resolver interface {
	Driver(name string) (*Backend, error)
}

// Backend is a resolved handle over a Store. It adds the compute-once
// remember primitives and capability-checked tag operations the
// orchestrator needs. Handles are cheap and safe for concurrent use.
type Backend struct {
	store  Store
	flight *singleflight.Group
}

// NewBackend wraps a store in a standalone handle. Most callers go through
// a Registry instead.
func NewBackend(store Store) *Backend {
	return &Backend{store: store, flight: &singleflight.Group{}}
}

// Driver reports the underlying store driver.
func (b *Backend) Driver() Driver { return b.store.Driver() }

// Store returns the underlying store implementation.
func (b *Backend) Store() Store { return b.store }

// SupportsTags reports whether the store can scope entries under tags.
func (b *Backend) SupportsTags() bool {
	_, ok := b.store.(TagStore)
	return ok
}

// WithTags returns a handle whose writes are recorded under tags. When the
// store cannot tag, the receiver is returned unchanged. Scoped handles share
// the parent's in-flight group so compute-once holds across views.
func (b *Backend) WithTags(tags ...string) *Backend {
	ts, ok := b.store.(TagStore)
	if !ok || len(tags) == 0 {
		return b
	}
	return &Backend{store: ts.WithTags(tags...), flight: b.flight}
}

// Remember returns the value under key, computing and storing it with ttl
// when absent. Concurrent callers for the same key share a single execution.
func (b *Backend) Remember(ctx context.Context, key string, ttl time.Duration, fn ExecFunc) ([]byte, error) {
	return b.remember(ctx, key, fn, func(ctx context.Context, body []byte) error {
		return b.store.Set(ctx, key, body, ttl)
	})
}

// RememberForever is Remember with no expiry.
func (b *Backend) RememberForever(ctx context.Context, key string, fn ExecFunc) ([]byte, error) {
	return b.remember(ctx, key, fn, func(ctx context.Context, body []byte) error {
		return b.store.SetForever(ctx, key, body)
	})
}

func (b *Backend) remember(ctx context.Context, key string, fn ExecFunc, write func(context.Context, []byte) error) ([]byte, error) {
	body, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return body, nil
	}
	if fn == nil {
		return nil, errors.New("querycache: remember requires an execution callback")
	}
	value, err, _ := b.flight.Do(key, func() (any, error) {
		// Losers of the race land here after the winner stored; check again.
		body, ok, err := b.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return body, nil
		}
		body, err = fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := write(ctx, body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

// FlushTag invalidates every entry recorded under tag. It reports false,
// never an error, when the store cannot tag or the flush fails.
func (b *Backend) FlushTag(ctx context.Context, tag string) bool {
	ts, ok := b.store.(TagStore)
	if !ok {
		return false
	}
	return ts.FlushTag(ctx, tag) == nil
}

// Registry maps backend names to handles and implements Resolver. The first
// registered backend becomes the default unless SetDefault overrides it.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*Backend
	fallback string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]*Backend)}
}

// Register adds a named store and returns the registry for chaining.
func (r *Registry) Register(name string, store Store) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = NewBackend(store)
	if r.fallback == "" {
		r.fallback = name
	}
	return r
}

// SetDefault selects which backend an empty driver name resolves to.
func (r *Registry) SetDefault(name string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = name
	return r
}

// Driver resolves a backend by name; the empty name resolves the default.
func (r *Registry) Driver(name string) (*Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.fallback
	}
	backend, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return backend, nil
}
