package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Operation identifies the kind of read a query performs. It is part of the
// cache key so that e.g. a count and a full fetch over the same SQL do not
// collide.
type Operation string

const (
	OpGet   Operation = "get"
	OpFirst Operation = "first"
	OpFind  Operation = "find"
	OpCount Operation = "count"
	OpValue Operation = "value"
)

// KeyFormat selects how the generated key is rendered.
type KeyFormat int

const (
	// KeyHashed renders the key as a SHA-256 hex digest. This is the
	// default; hashed keys have a fixed length and leak nothing.
	KeyHashed KeyFormat = iota

	// KeyPlain renders the raw concatenated key. Useful when inspecting
	// a backend by hand.
	KeyPlain
)

// DefaultKeyPrefix namespaces generated keys unless a Config overrides it.
const DefaultKeyPrefix = "qc"

// CacheKey builds a deterministic key for a query. The plain form
// concatenates, in fixed order: connection, operation, row identifier,
// query payload, and suffix. The payload for OpCount is the serialized
// bindings alone, because a count has no stable compiled text of its own;
// every other operation uses the compiled text plus the serialized bindings.
func CacheKey(q Query, op Operation, rowID, suffix string, format KeyFormat) string {
	payload := serializeBindings(q.Bindings())
	if op != OpCount {
		payload = q.SQL() + payload
	}
	plain := q.Connection() + string(op) + rowID + payload + suffix
	if format == KeyPlain {
		return plain
	}
	digest := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(digest[:])
}

// serializeBindings renders positional bindings deterministically. JSON
// encoding of a slice preserves order, which matters: bindings are
// positional, so [1,2] and [2,1] are different queries.
func serializeBindings(bindings []any) string {
	if len(bindings) == 0 {
		return "[]"
	}
	body, err := json.Marshal(bindings)
	if err != nil {
		// Unserializable bindings (channels, funcs) cannot identify a
		// query; an empty payload keeps the key stable rather than
		// failing the read path.
		return "[]"
	}
	return string(body)
}
