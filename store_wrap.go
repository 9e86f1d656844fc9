package querycache

import "context"

// preserveTags keeps an inner store's tag capability visible through a
// value-shaping decorator. The rewrap function applies the decorator on top
// of a tag-scoped view so writes are transformed exactly once.
func preserveTags(wrapped, inner Store, rewrap func(Store) Store) Store {
	ts, ok := inner.(TagStore)
	if !ok {
		return wrapped
	}
	return &tagPreservingStore{Store: wrapped, inner: ts, rewrap: rewrap}
}

type tagPreservingStore struct {
	Store
	inner  TagStore
	rewrap func(Store) Store
}

func (s *tagPreservingStore) WithTags(tags ...string) Store {
	return s.rewrap(s.inner.WithTags(tags...))
}

func (s *tagPreservingStore) FlushTag(ctx context.Context, tag string) error {
	return s.inner.FlushTag(ctx, tag)
}
