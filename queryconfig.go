package querycache

import "time"

// Config carries the per-query caching policy. It is a value type: every
// setter returns a modified copy and never touches the receiver, so a Config
// can be shared across goroutines and reused as a template.
//
// Caching is opt-in. The zero Config caches nothing until CacheFor,
// CacheUntil, or CacheForever enables it.
type Config struct {
	ttl      time.Duration
	until    time.Time
	forever  bool
	enabled  bool
	tags     []string
	baseTags []string
	driver   string
	prefix   string
	suffix   string
	format   KeyFormat
}

// CacheFor enables caching with a relative time-to-live.
func (c Config) CacheFor(ttl time.Duration) Config {
	c.ttl = ttl
	c.until = time.Time{}
	c.forever = false
	c.enabled = true
	return c
}

// CacheUntil enables caching with an absolute expiry instant.
func (c Config) CacheUntil(t time.Time) Config {
	c.ttl = 0
	c.until = t
	c.forever = false
	c.enabled = true
	return c
}

// CacheForever enables caching with no expiry.
func (c Config) CacheForever() Config {
	c.ttl = 0
	c.until = time.Time{}
	c.forever = true
	c.enabled = true
	return c
}

// DontCache suppresses caching without clearing the configured duration, so
// a later CacheFor with the same value restores the previous behavior.
func (c Config) DontCache() Config {
	c.enabled = false
	return c
}

// DoNotCache is an alias for DontCache.
func (c Config) DoNotCache() Config {
	return c.DontCache()
}

// CacheTags replaces the per-call tag set.
func (c Config) CacheTags(tags ...string) Config {
	c.tags = dedupeTags(nil, tags)
	return c
}

// AppendCacheTags unions tags into the per-call tag set.
func (c Config) AppendCacheTags(tags ...string) Config {
	c.tags = dedupeTags(c.tags, tags)
	return c
}

// CacheBaseTags sets tags applied to every call in addition to per-call tags.
func (c Config) CacheBaseTags(tags ...string) Config {
	c.baseTags = dedupeTags(nil, tags)
	return c
}

// CachePrefix overrides the key prefix, DefaultKeyPrefix by default.
func (c Config) CachePrefix(prefix string) Config {
	c.prefix = prefix
	return c
}

// CacheDriver selects which registered backend stores the results. An empty
// name resolves the registry default.
func (c Config) CacheDriver(name string) Config {
	c.driver = name
	return c
}

// CacheSuffix appends a disambiguating suffix to the generated key.
func (c Config) CacheSuffix(suffix string) Config {
	c.suffix = suffix
	return c
}

// WithPlainKey renders keys unhashed for debuggability.
func (c Config) WithPlainKey() Config {
	c.format = KeyPlain
	return c
}

// Enabled reports whether caching is active for this configuration.
func (c Config) Enabled() bool { return c.enabled }

// TTL returns the relative duration, zero when unset.
func (c Config) TTL() time.Duration { return c.ttl }

// Until returns the absolute expiry, zero when unset.
func (c Config) Until() time.Time { return c.until }

// Forever reports whether the no-expiry sentinel is set.
func (c Config) Forever() bool { return c.forever }

// Tags returns a copy of the per-call tag set.
func (c Config) Tags() []string { return append([]string(nil), c.tags...) }

// BaseTags returns a copy of the always-applied tag set.
func (c Config) BaseTags() []string { return append([]string(nil), c.baseTags...) }

// Prefix returns the effective key prefix.
func (c Config) Prefix() string {
	if c.prefix == "" {
		return DefaultKeyPrefix
	}
	return c.prefix
}

// DriverName returns the configured backend name, empty for the default.
func (c Config) DriverName() string { return c.driver }

// Format returns the configured key format.
func (c Config) Format() KeyFormat { return c.format }

// allTags is the union of per-call and base tags, order preserved.
func (c Config) allTags() []string {
	return dedupeTags(c.Tags(), c.baseTags)
}

// dedupeTags appends extra onto base, skipping duplicates and blanks. The
// base slice is never mutated in place.
func dedupeTags(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, set := range [][]string{base, extra} {
		for _, tag := range set {
			if tag == "" {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
