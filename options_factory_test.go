package querycache

import (
	"context"
	"testing"
	"time"
)

func TestStoreOptionsApply(t *testing.T) {
	redisClient := newStubRedisClient()
	kv := newStubNATSKeyValue("bucket")
	dyn := newDynStub()

	cfg := StoreConfig{Driver: DriverRedis}
	for _, opt := range []StoreOption{
		WithDefaultTTL(30 * time.Second),
		WithMemoryCleanupInterval(time.Minute),
		WithPrefix("app"),
		WithRedisClient(redisClient),
		WithFileDir("/tmp/qc"),
		WithNATSKeyValue(kv),
		WithNATSBucketTTL(),
		WithDynamoClient(dyn),
		WithDynamoTable("cache_tbl"),
		WithSQL("sqlite", "file.db"),
		WithSQLTable("entries"),
		WithCompression(CompressionGzip),
		WithMaxValueBytes(1 << 20),
		WithEncryptionKey([]byte("0123456789abcdef")),
	} {
		cfg = opt(cfg)
	}

	if cfg.DefaultTTL != 30*time.Second {
		t.Fatalf("default ttl not applied: %v", cfg.DefaultTTL)
	}
	if cfg.MemoryCleanupInterval != time.Minute {
		t.Fatalf("cleanup interval not applied: %v", cfg.MemoryCleanupInterval)
	}
	if cfg.Prefix != "app" {
		t.Fatalf("prefix not applied: %q", cfg.Prefix)
	}
	if cfg.RedisClient != RedisClient(redisClient) {
		t.Fatalf("redis client not applied")
	}
	if cfg.FileDir != "/tmp/qc" {
		t.Fatalf("file dir not applied: %q", cfg.FileDir)
	}
	if cfg.NATSKeyValue != NATSKeyValue(kv) || !cfg.NATSBucketTTL {
		t.Fatalf("nats options not applied")
	}
	if cfg.DynamoClient != DynamoAPI(dyn) || cfg.DynamoTable != "cache_tbl" {
		t.Fatalf("dynamo options not applied")
	}
	if cfg.SQLDriverName != "sqlite" || cfg.SQLDSN != "file.db" || cfg.SQLTable != "entries" {
		t.Fatalf("sql options not applied")
	}
	if cfg.Compression != CompressionGzip || cfg.MaxValueBytes != 1<<20 {
		t.Fatalf("shaping options not applied")
	}
	if string(cfg.EncryptionKey) != "0123456789abcdef" {
		t.Fatalf("encryption key not applied")
	}
}

func TestNewStoreWithOptions(t *testing.T) {
	ctx := context.Background()
	store := NewStoreWith(ctx, DriverRedis, WithRedisClient(newStubRedisClient()), WithPrefix("app"))
	if store.Driver() != DriverRedis {
		t.Fatalf("unexpected driver: %q", store.Driver())
	}
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set through options-built store failed: %v", err)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	ctx := context.Background()

	if got := NewMemoryStore(ctx).Driver(); got != DriverMemory {
		t.Fatalf("memory constructor driver: %q", got)
	}
	if got := NewRedisStore(ctx, newStubRedisClient()).Driver(); got != DriverRedis {
		t.Fatalf("redis constructor driver: %q", got)
	}
	if got := NewFileStore(ctx, t.TempDir()).Driver(); got != DriverFile {
		t.Fatalf("file constructor driver: %q", got)
	}
	if got := NewNATSStore(ctx, newStubNATSKeyValue("b")).Driver(); got != DriverNATS {
		t.Fatalf("nats constructor driver: %q", got)
	}
	if got := NewDynamoStore(ctx, WithDynamoClient(newDynStub())).Driver(); got != DriverDynamo {
		t.Fatalf("dynamo constructor driver: %q", got)
	}
	if got := NewNullStore().Driver(); got != DriverNull {
		t.Fatalf("null constructor driver: %q", got)
	}
}
