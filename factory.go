package querycache

import "context"

// NewStore returns a concrete store for the requested driver. Drivers that
// can fail to initialize (sql, dynamodb) degrade to a store that surfaces
// the construction error on every call rather than panicking.
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := querycache.NewStore(ctx, querycache.StoreConfig{
//		Driver: querycache.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	var store Store
	switch cfg.Driver {
	case DriverNull:
		store = newNullStore()
	case DriverRedis:
		store = newRedisStore(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix)
	case DriverFile:
		store = newFileStore(cfg.FileDir, cfg.DefaultTTL)
	case DriverNATS:
		store = newNATSStore(cfg.NATSKeyValue, cfg.DefaultTTL, cfg.Prefix, cfg.NATSBucketTTL)
	case DriverDynamo:
		dynamo, err := newDynamoStore(ctx, cfg)
		if err != nil {
			store = &errorStore{driver: DriverDynamo, err: err}
		} else {
			store = dynamo
		}
	case DriverSQL:
		sqls, err := newSQLStore(cfg)
		if err != nil {
			store = &errorStore{driver: DriverSQL, err: err}
		} else {
			store = sqls
		}
	default:
		store = newMemoryStore(cfg.DefaultTTL, cfg.MemoryCleanupInterval)
	}
	store = newShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
	if len(cfg.EncryptionKey) > 0 {
		encrypted, err := newEncryptingStore(store, cfg.EncryptionKey)
		if err != nil {
			return &errorStore{driver: cfg.Driver, err: err}
		}
		store = encrypted
	}
	return store
}

// NewStoreWith builds a store using a driver and a set of functional options.
// Required data (e.g., Redis client) must be provided via options when needed.
//
// Example: redis store (options)
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := querycache.NewStoreWith(ctx, querycache.DriverRedis,
//		querycache.WithRedisClient(redisClient),
//		querycache.WithPrefix("app"),
//	)
//	fmt.Println(store.Driver()) // redis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store with optional overrides.
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewRedisStore is a convenience for a redis-backed store. Redis client is required.
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewFileStore is a convenience for a filesystem-backed store.
func NewFileStore(ctx context.Context, dir string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverFile, append([]StoreOption{WithFileDir(dir)}, opts...)...)
}

// NewNATSStore is a convenience for a JetStream key-value backed store.
func NewNATSStore(ctx context.Context, kv NATSKeyValue, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv)}, opts...)...)
}

// NewSQLStore is a convenience for a SQL-backed store.
func NewSQLStore(ctx context.Context, driverName, dsn string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB-backed store.
func NewDynamoStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverDynamo, opts...)
}

// NewNullStore caches nothing; every read misses.
func NewNullStore() Store {
	return newNullStore()
}
