// Package querycache is a transparent result cache for read queries. It
// fingerprints a query's semantic identity (connection, operation, compiled
// text, positional bindings) into a deterministic key, serves previously
// computed results from a pluggable backend, and groups entries under tags
// so related results can be invalidated together after writes.
//
// Backends that cannot tag degrade gracefully: tagged reads fall back to
// plain caching and tag flushes report failure instead of erroring.
package querycache
