package querycache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisStoreNilClientErrors(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(nil, 0, "")

	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error when redis client is nil")
	}
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected set error when redis client is nil")
	}
	if err := store.SetForever(ctx, "k", []byte("v")); err == nil {
		t.Fatalf("expected set forever error when redis client is nil")
	}
	if err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error when redis client is nil")
	}
	if err := store.Flush(ctx); err == nil {
		t.Fatalf("expected flush error when redis client is nil")
	}
	if err := store.FlushTag(ctx, "users"); err == nil {
		t.Fatalf("expected flush tag error when redis client is nil")
	}
	if err := store.recordTags(ctx, "k", []string{"users"}); err == nil {
		t.Fatalf("expected record tags error when redis client is nil")
	}
}

func TestRedisStoreOperationsWithStubClient(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	store := newRedisStore(client, time.Second, "pfx")

	if err := store.Set(ctx, "alpha", []byte("one"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "alpha")
	if err != nil || !ok || string(body) != "one" {
		t.Fatalf("unexpected get result: ok=%v err=%v body=%s", ok, err, string(body))
	}
	if _, stored := client.store["pfx:alpha"]; !stored {
		t.Fatalf("expected key stored under prefix, got %v", client.keys())
	}
	if ttl, ok := client.ttl["pfx:alpha"]; !ok || ttl.IsZero() {
		t.Fatalf("expected default ttl applied, got %v", ttl)
	}

	if err := store.SetForever(ctx, "pin", []byte("keep")); err != nil {
		t.Fatalf("set forever failed: %v", err)
	}
	if ttl := client.ttl["pfx:pin"]; !ttl.IsZero() {
		t.Fatalf("expected forever entry without ttl, got %v", ttl)
	}

	if err := store.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, "alpha"); err != nil || ok {
		t.Fatalf("expected miss after delete: ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "flushme", []byte("x"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "flushme"); ok {
		t.Fatalf("expected flushed key to be gone")
	}
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := newRedisStore(newStubRedisClient(), 0, "pfx")
	_, ok, err := store.Get(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected clean miss: ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreErrorPropagation(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("redis down")

	client := newStubRedisClient()
	client.getErr = boom
	if _, _, err := newRedisStore(client, 0, "pfx").Get(ctx, "k"); !errors.Is(err, boom) {
		t.Fatalf("expected get error, got %v", err)
	}

	client = newStubRedisClient()
	client.setErr = boom
	if err := newRedisStore(client, 0, "pfx").Set(ctx, "k", []byte("v"), 0); !errors.Is(err, boom) {
		t.Fatalf("expected set error, got %v", err)
	}

	client = newStubRedisClient()
	client.scanErr = boom
	if err := newRedisStore(client, 0, "pfx").Flush(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected flush error, got %v", err)
	}

	client = newStubRedisClient()
	client.saddErr = boom
	if err := newRedisStore(client, 0, "pfx").recordTags(ctx, "k", []string{"users"}); !errors.Is(err, boom) {
		t.Fatalf("expected record tags error, got %v", err)
	}

	client = newStubRedisClient()
	client.smembersErr = boom
	if err := newRedisStore(client, 0, "pfx").FlushTag(ctx, "users"); !errors.Is(err, boom) {
		t.Fatalf("expected flush tag error, got %v", err)
	}
}

func TestRedisStoreTagFlush(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	store := newRedisStore(client, 0, "pfx")

	users := store.WithTags("users")
	if err := users.Set(ctx, "u1", []byte("a"), time.Minute); err != nil {
		t.Fatalf("tagged set failed: %v", err)
	}
	if err := users.SetForever(ctx, "u2", []byte("b")); err != nil {
		t.Fatalf("tagged set forever failed: %v", err)
	}
	if err := store.Set(ctx, "plain", []byte("c"), time.Minute); err != nil {
		t.Fatalf("untagged set failed: %v", err)
	}

	members := client.sets["pfx:tag:users"]
	if len(members) != 2 {
		t.Fatalf("expected two indexed members, got %v", members)
	}
	for member := range members {
		if !strings.HasPrefix(member, "pfx:") {
			t.Fatalf("expected fully-prefixed member, got %q", member)
		}
	}

	if err := store.FlushTag(ctx, "users"); err != nil {
		t.Fatalf("flush tag failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "u1"); ok {
		t.Fatalf("expected u1 flushed")
	}
	if _, ok, _ := store.Get(ctx, "u2"); ok {
		t.Fatalf("expected u2 flushed")
	}
	if _, ok, _ := store.Get(ctx, "plain"); !ok {
		t.Fatalf("expected untagged entry to survive")
	}
	if _, ok := client.sets["pfx:tag:users"]; ok {
		t.Fatalf("expected tag set removed after flush")
	}

	// Unknown tags flush cleanly.
	if err := store.FlushTag(ctx, "nope"); err != nil {
		t.Fatalf("flush of unknown tag failed: %v", err)
	}
}

// stubRedisClient is an in-memory RedisClient for tests.
type stubRedisClient struct {
	store map[string]string
	ttl   map[string]time.Time
	sets  map[string]map[string]struct{}

	getErr      error
	setErr      error
	delErr      error
	scanErr     error
	saddErr     error
	smembersErr error
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{
		store: make(map[string]string),
		ttl:   make(map[string]time.Time),
		sets:  make(map[string]map[string]struct{}),
	}
}

func (c *stubRedisClient) keys() []string {
	out := make([]string, 0, len(c.store))
	for key := range c.store {
		out = append(out, key)
	}
	return out
}

func (c *stubRedisClient) expired(key string) bool {
	deadline, ok := c.ttl[key]
	return ok && !deadline.IsZero() && time.Now().After(deadline)
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if c.getErr != nil {
		cmd.SetErr(c.getErr)
		return cmd
	}
	value, ok := c.store[key]
	if !ok || c.expired(key) {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(value)
	return cmd
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.setErr != nil {
		cmd.SetErr(c.setErr)
		return cmd
	}
	switch v := value.(type) {
	case []byte:
		c.store[key] = string(v)
	case string:
		c.store[key] = v
	default:
		cmd.SetErr(errors.New("unsupported value type"))
		return cmd
	}
	if expiration > 0 {
		c.ttl[key] = time.Now().Add(expiration)
	} else {
		c.ttl[key] = time.Time{}
	}
	cmd.SetVal("OK")
	return cmd
}

func (c *stubRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if c.delErr != nil {
		cmd.SetErr(c.delErr)
		return cmd
	}
	var removed int64
	for _, key := range keys {
		if _, ok := c.store[key]; ok {
			delete(c.store, key)
			delete(c.ttl, key)
			removed++
		}
		if _, ok := c.sets[key]; ok {
			delete(c.sets, key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func (c *stubRedisClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	if c.scanErr != nil {
		return redis.NewScanCmdResult(nil, 0, c.scanErr)
	}
	prefix := strings.TrimSuffix(match, "*")
	var page []string
	for key := range c.store {
		if strings.HasPrefix(key, prefix) {
			page = append(page, key)
		}
	}
	return redis.NewScanCmdResult(page, 0, nil)
}

func (c *stubRedisClient) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if c.saddErr != nil {
		cmd.SetErr(c.saddErr)
		return cmd
	}
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	var added int64
	for _, member := range members {
		text, ok := member.(string)
		if !ok {
			cmd.SetErr(errors.New("unsupported member type"))
			return cmd
		}
		if _, dup := set[text]; !dup {
			set[text] = struct{}{}
			added++
		}
	}
	cmd.SetVal(added)
	return cmd
}

func (c *stubRedisClient) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	if c.smembersErr != nil {
		cmd.SetErr(c.smembersErr)
		return cmd
	}
	members := make([]string, 0, len(c.sets[key]))
	for member := range c.sets[key] {
		members = append(members, member)
	}
	cmd.SetVal(members)
	return cmd
}
