// Package cachefake provides a deterministic in-memory tag-capable store
// with call counting and per-tag failure injection for tests.
package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/querycache"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpGet        Op = "get"
	OpSet        Op = "set"
	OpSetForever Op = "set_forever"
	OpDelete     Op = "delete"
	OpFlush      Op = "flush"
	OpFlushTag   Op = "flush_tag"
)

// Fake wraps the real memory store so no external services are needed.
type Fake struct {
	store *countingStore

	mu      sync.Mutex
	counts  map[Op]map[string]int
	tagErrs map[string]error
}

// New creates a Fake backed by an in-memory store.
func New() *Fake {
	inner, _ := querycache.NewMemoryStore(context.Background()).(querycache.TagStore)
	f := &Fake{
		counts:  make(map[Op]map[string]int),
		tagErrs: make(map[string]error),
	}
	f.store = &countingStore{inner: inner, fake: f}
	return f
}

// Store returns the tag-capable store to inject into code under test.
func (f *Fake) Store() querycache.TagStore { return f.store }

// FailTag makes FlushTag return err for the given tag.
func (f *Fake) FailTag(tag string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagErrs[tag] = err
}

// Reset clears recorded counts and injected failures.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
	f.tagErrs = make(map[string]error)
}

// Count reports how many times op touched key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op][key]
}

// CountOp reports how many times op ran across all keys.
func (f *Fake) CountOp(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.counts[op] {
		total += n
	}
	return total
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

func (f *Fake) record(op Op, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byKey, ok := f.counts[op]
	if !ok {
		byKey = make(map[string]int)
		f.counts[op] = byKey
	}
	byKey[key]++
}

func (f *Fake) tagErr(tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tagErrs[tag]
}

type countingStore struct {
	inner querycache.TagStore
	fake  *Fake
}

func (s *countingStore) Driver() querycache.Driver { return s.inner.Driver() }

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.fake.record(OpGet, key)
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.fake.record(OpSet, key)
	return s.inner.Set(ctx, key, value, ttl)
}

func (s *countingStore) SetForever(ctx context.Context, key string, value []byte) error {
	s.fake.record(OpSetForever, key)
	return s.inner.SetForever(ctx, key, value)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	s.fake.record(OpDelete, key)
	return s.inner.Delete(ctx, key)
}

func (s *countingStore) Flush(ctx context.Context) error {
	s.fake.record(OpFlush, "")
	return s.inner.Flush(ctx)
}

func (s *countingStore) WithTags(tags ...string) querycache.Store {
	return &countingView{inner: s.inner.WithTags(tags...), fake: s.fake}
}

func (s *countingStore) FlushTag(ctx context.Context, tag string) error {
	s.fake.record(OpFlushTag, tag)
	if err := s.fake.tagErr(tag); err != nil {
		return err
	}
	return s.inner.FlushTag(ctx, tag)
}

// countingView counts operations performed through a tag-scoped view.
type countingView struct {
	inner querycache.Store
	fake  *Fake
}

func (v *countingView) Driver() querycache.Driver { return v.inner.Driver() }

func (v *countingView) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v.fake.record(OpGet, key)
	return v.inner.Get(ctx, key)
}

func (v *countingView) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	v.fake.record(OpSet, key)
	return v.inner.Set(ctx, key, value, ttl)
}

func (v *countingView) SetForever(ctx context.Context, key string, value []byte) error {
	v.fake.record(OpSetForever, key)
	return v.inner.SetForever(ctx, key, value)
}

func (v *countingView) Delete(ctx context.Context, key string) error {
	v.fake.record(OpDelete, key)
	return v.inner.Delete(ctx, key)
}

func (v *countingView) Flush(ctx context.Context) error {
	v.fake.record(OpFlush, "")
	return v.inner.Flush(ctx)
}
