package querycache

import (
	"context"
	"time"
)

// Observer receives events for query cache operations. It is called from
// CachedQuery after each operation completes.
type Observer interface {
	OnQueryCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver)

// OnQueryCacheOp implements Observer.
func (f ObserverFunc) OnQueryCacheOp(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration, driver Driver) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur, driver)
}
