package cachetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goforj/querycache"
)

// Options configures shared store contract checks.
type Options struct {
	// CaseName is used to namespace keys. Defaults to t.Name().
	CaseName string
	// NullSemantics enables relaxed expectations for the null store.
	NullSemantics bool
	// SkipCloneCheck disables the "get returns a cloned value" assertion.
	SkipCloneCheck bool
	// TTL controls the expiry duration used in TTL tests.
	TTL time.Duration
	// TTLWait is how long the harness waits for expiry to occur.
	TTLWait time.Duration
	// SkipFlush disables the flush assertion for drivers where it is expensive or unavailable.
	SkipFlush bool
}

// RunStoreContract runs a backend-agnostic store contract suite.
func RunStoreContract(t *testing.T, store querycache.Store, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Millisecond
	}
	wait := opts.TTLWait
	if wait <= 0 {
		wait = 120 * time.Millisecond
	}

	ctx := context.Background()
	key := func(s string) string {
		return sanitize(caseName) + ":" + s
	}

	// Set/Get round-trip.
	if err := store.Set(ctx, key("alpha"), []byte("value"), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, key("alpha"))
	if err != nil {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
	} else {
		if !ok || string(body) != "value" {
			t.Fatalf("unexpected get result: ok=%v body=%q err=%v", ok, string(body), err)
		}
		if !opts.SkipCloneCheck {
			body[0] = 'X'
			again, ok, err := store.Get(ctx, key("alpha"))
			if err != nil || !ok || string(again) != "value" {
				t.Fatalf("expected stored value unaffected by caller mutation: ok=%v body=%q err=%v", ok, string(again), err)
			}
		}
	}

	// Miss on unknown key.
	if _, ok, err := store.Get(ctx, key("missing")); err != nil || ok {
		t.Fatalf("expected clean miss: ok=%v err=%v", ok, err)
	}

	// SetForever survives the TTL window.
	if err := store.SetForever(ctx, key("pinned"), []byte("keep")); err != nil {
		t.Fatalf("set forever failed: %v", err)
	}

	// TTL expiry.
	if err := store.Set(ctx, key("ttl"), []byte("gone"), ttl); err != nil {
		t.Fatalf("ttl set failed: %v", err)
	}
	if !opts.NullSemantics {
		time.Sleep(wait)
		if _, ok, err := store.Get(ctx, key("ttl")); err != nil || ok {
			t.Fatalf("expected ttl expiry: ok=%v err=%v", ok, err)
		}
		body, ok, err := store.Get(ctx, key("pinned"))
		if err != nil || !ok || string(body) != "keep" {
			t.Fatalf("expected forever entry to survive: ok=%v body=%q err=%v", ok, string(body), err)
		}
	}

	// Delete.
	if err := store.Set(ctx, key("doomed"), []byte("x"), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Delete(ctx, key("doomed")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, key("doomed")); err != nil || ok {
		t.Fatalf("expected miss after delete: ok=%v err=%v", ok, err)
	}

	// Flush.
	if !opts.SkipFlush {
		if err := store.Set(ctx, key("flushed"), []byte("x"), time.Second); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.Flush(ctx); err != nil {
			t.Fatalf("flush failed: %v", err)
		}
		if _, ok, err := store.Get(ctx, key("flushed")); err != nil || ok {
			t.Fatalf("expected miss after flush: ok=%v err=%v", ok, err)
		}
	}
}

// RunTagStoreContract runs the tag-scoping suite against a tag-capable store.
func RunTagStoreContract(t *testing.T, store querycache.TagStore, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ctx := context.Background()
	key := func(s string) string {
		return sanitize(caseName) + ":" + s
	}
	tag := func(s string) string {
		return sanitize(caseName) + "-" + s
	}

	users := store.WithTags(tag("users"))
	posts := store.WithTags(tag("posts"))
	both := store.WithTags(tag("users"), tag("posts"))

	if err := users.Set(ctx, key("u1"), []byte("user"), time.Minute); err != nil {
		t.Fatalf("tagged set failed: %v", err)
	}
	if err := posts.SetForever(ctx, key("p1"), []byte("post")); err != nil {
		t.Fatalf("tagged set forever failed: %v", err)
	}
	if err := both.Set(ctx, key("up1"), []byte("joined"), time.Minute); err != nil {
		t.Fatalf("multi-tag set failed: %v", err)
	}
	if err := store.Set(ctx, key("plain"), []byte("untagged"), time.Minute); err != nil {
		t.Fatalf("untagged set failed: %v", err)
	}

	// Tagged entries read back through any view and the root store.
	if body, ok, err := store.Get(ctx, key("u1")); err != nil || !ok || string(body) != "user" {
		t.Fatalf("unexpected tagged read: ok=%v body=%q err=%v", ok, string(body), err)
	}

	// Flushing one tag removes its entries, joined entries included, and
	// leaves everything else alone.
	if err := store.FlushTag(ctx, tag("users")); err != nil {
		t.Fatalf("flush tag failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, key("u1")); ok {
		t.Fatalf("expected users entry flushed")
	}
	if _, ok, _ := store.Get(ctx, key("up1")); ok {
		t.Fatalf("expected joined entry flushed")
	}
	if body, ok, err := store.Get(ctx, key("p1")); err != nil || !ok || string(body) != "post" {
		t.Fatalf("expected posts entry to survive: ok=%v body=%q err=%v", ok, string(body), err)
	}
	if _, ok, _ := store.Get(ctx, key("plain")); !ok {
		t.Fatalf("expected untagged entry to survive")
	}

	// Flushing an unknown tag is a no-op.
	if err := store.FlushTag(ctx, tag("nope")); err != nil {
		t.Fatalf("flush of unknown tag failed: %v", err)
	}
}

func sanitize(name string) string {
	replacer := strings.NewReplacer("/", "_", " ", "_")
	return replacer.Replace(name)
}
