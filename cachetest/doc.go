// Package cachetest provides shared contract suites for querycache store
// implementations. Driver packages and integration tests run the same
// assertions against their concrete stores so behavior stays uniform across
// backends.
package cachetest
