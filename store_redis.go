package querycache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

type redisStore struct {
	client     RedisClient
	defaultTTL time.Duration
	prefix     string
}

func newRedisStore(client RedisClient, defaultTTL time.Duration, prefix string) *redisStore {
	if defaultTTL <= 0 {
		defaultTTL = defaultStoreTTL
	}
	if prefix == "" {
		prefix = defaultStorePrefix
	}
	return &redisStore{
		client:     client,
		defaultTTL: defaultTTL,
		prefix:     prefix,
	}
}

func (s *redisStore) Driver() Driver {
	return DriverRedis
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, errors.New("redis cache client unavailable")
	}
	value, err := s.client.Get(ctx, s.cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return errors.New("redis cache client unavailable")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.cacheKey(key), value, ttl).Err()
}

func (s *redisStore) SetForever(ctx context.Context, key string, value []byte) error {
	if s.client == nil {
		return errors.New("redis cache client unavailable")
	}
	return s.client.Set(ctx, s.cacheKey(key), value, 0).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return errors.New("redis cache client unavailable")
	}
	return s.client.Del(ctx, s.cacheKey(key)).Err()
}

func (s *redisStore) Flush(ctx context.Context) error {
	if s.client == nil {
		return errors.New("redis cache client unavailable")
	}
	pattern := s.cacheKey("*")
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// WithTags returns a view whose writes are indexed under tags.
func (s *redisStore) WithTags(tags ...string) Store {
	return newTaggedStore(s, tags)
}

// FlushTag deletes every member of the tag's key set, then the set itself.
func (s *redisStore) FlushTag(ctx context.Context, tag string) error {
	if s.client == nil {
		return errors.New("redis cache client unavailable")
	}
	tagKey := s.tagKey(tag)
	members, err := s.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return err
	}
	if len(members) > 0 {
		if err := s.client.Del(ctx, members...).Err(); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, tagKey).Err()
}

func (s *redisStore) recordTags(ctx context.Context, key string, tags []string) error {
	if s.client == nil {
		return errors.New("redis cache client unavailable")
	}
	member := s.cacheKey(key)
	for _, tag := range tags {
		if err := s.client.SAdd(ctx, s.tagKey(tag), member).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *redisStore) cacheKey(key string) string {
	return s.prefix + ":" + key
}

func (s *redisStore) tagKey(tag string) string {
	return s.prefix + ":tag:" + tag
}
