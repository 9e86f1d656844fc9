package querycache

import (
	"os"
	"path/filepath"
	"time"
)

const (
	defaultStorePrefix           = "querycache"
	defaultStoreTTL              = 5 * time.Minute
	defaultMemoryCleanupInterval = 10 * time.Minute
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "querycache-file")
}

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	Driver Driver

	// DefaultTTL is used when a call provides ttl <= 0.
	DefaultTTL time.Duration

	// MemoryCleanupInterval controls in-process cache eviction.
	MemoryCleanupInterval time.Duration

	// Prefix is used by shared backends (e.g. redis keys).
	Prefix string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// FileDir controls where the file driver stores cache entries.
	FileDir string

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue

	// NATSBucketTTL trusts the bucket's own TTL instead of wrapping
	// values in an expiry envelope.
	NATSBucketTTL bool

	// DynamoClient may be supplied directly; when nil one is built from
	// DynamoRegion/DynamoEndpoint.
	DynamoClient   DynamoAPI
	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string

	// SQLDriverName and SQLDSN are required when DriverSQL is used.
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// Compression and MaxValueBytes shape values before storage.
	Compression   CompressionCodec
	MaxValueBytes int

	// EncryptionKey, when set, seals values with AES-GCM.
	EncryptionKey []byte
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultStoreTTL
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultStorePrefix
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.DynamoTable == "" {
		c.DynamoTable = "query_cache"
	}
	return c
}
