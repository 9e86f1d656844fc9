package querycache

import (
	"context"
	"time"
)

// tagRecorder is the internal surface a tag-capable store exposes to the
// shared tagged view: the full TagStore contract plus the primitive that
// indexes a written key under a set of tags.
type tagRecorder interface {
	TagStore
	recordTags(ctx context.Context, key string, tags []string) error
}

// taggedStore is the tag-scoped view returned by WithTags. Reads and
// deletes pass through untouched; writes additionally index the key under
// the view's tags. Views hold no resources and need no release.
type taggedStore struct {
	inner tagRecorder
	tags  []string
}

func newTaggedStore(inner tagRecorder, tags []string) Store {
	return &taggedStore{inner: inner, tags: dedupeTags(nil, tags)}
}

func (s *taggedStore) Driver() Driver { return s.inner.Driver() }

func (s *taggedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, key)
}

func (s *taggedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.inner.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return s.inner.recordTags(ctx, key, s.tags)
}

func (s *taggedStore) SetForever(ctx context.Context, key string, value []byte) error {
	if err := s.inner.SetForever(ctx, key, value); err != nil {
		return err
	}
	return s.inner.recordTags(ctx, key, s.tags)
}

func (s *taggedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *taggedStore) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}

// WithTags widens the view with additional tags.
func (s *taggedStore) WithTags(tags ...string) Store {
	return &taggedStore{inner: s.inner, tags: dedupeTags(s.tags, tags)}
}

// FlushTag delegates to the parent store; tag indexes are store-wide, not
// view-scoped.
func (s *taggedStore) FlushTag(ctx context.Context, tag string) error {
	return s.inner.FlushTag(ctx, tag)
}
