package querycache

import (
	"context"
	"time"
)

// Store is the contract a cache backend must satisfy to hold query results.
// Set with ttl <= 0 falls back to the store default; SetForever writes an
// entry with no expiry at all.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetForever(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}

// TagStore is implemented by stores that can group entries under tags for
// bulk invalidation. Capability is discovered by interface assertion at
// backend-resolution time, never by probing calls.
type TagStore interface {
	Store

	// WithTags returns a view of the store that records every written key
	// under each tag. Views are cheap handles and need no release.
	WithTags(tags ...string) Store

	// FlushTag deletes every entry recorded under tag.
	FlushTag(ctx context.Context, tag string) error
}

func cloneBytes(body []byte) []byte {
	if body == nil {
		return nil
	}
	clone := make([]byte, len(body))
	copy(clone, body)
	return clone
}
