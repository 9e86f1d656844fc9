package querycache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
	mu         sync.Mutex
	tagIndex   map[string]map[string]struct{}
}

func newMemoryStore(defaultTTL, cleanupInterval time.Duration) *memoryStore {
	if defaultTTL <= 0 {
		defaultTTL = defaultStoreTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanupInterval
	}
	return &memoryStore{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
		tagIndex:   make(map[string]map[string]struct{}),
	}
}

func (s *memoryStore) Driver() Driver {
	return DriverMemory
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.cache.Set(key, cloneBytes(value), ttl)
	return nil
}

func (s *memoryStore) SetForever(_ context.Context, key string, value []byte) error {
	s.cache.Set(key, cloneBytes(value), gocache.NoExpiration)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *memoryStore) Flush(_ context.Context) error {
	s.cache.Flush()
	s.mu.Lock()
	s.tagIndex = make(map[string]map[string]struct{})
	s.mu.Unlock()
	return nil
}

// WithTags returns a view whose writes are indexed under tags.
func (s *memoryStore) WithTags(tags ...string) Store {
	return newTaggedStore(s, tags)
}

// FlushTag deletes every entry indexed under tag and drops the index.
func (s *memoryStore) FlushTag(_ context.Context, tag string) error {
	s.mu.Lock()
	keys := s.tagIndex[tag]
	delete(s.tagIndex, tag)
	s.mu.Unlock()
	for key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

func (s *memoryStore) recordTags(_ context.Context, key string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		keys, ok := s.tagIndex[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tagIndex[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}
