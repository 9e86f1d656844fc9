package querycache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(time.Minute, time.Minute)

	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(body) != "v" {
		t.Fatalf("unexpected get result: ok=%v body=%s err=%v", ok, body, err)
	}

	// The stored value must not alias caller memory.
	body[0] = 'X'
	again, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(again) != "v" {
		t.Fatalf("expected stored value isolated from caller mutation: %s", again)
	}
}

func TestMemoryStoreTTLAndForever(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(10*time.Millisecond, time.Minute)

	if err := store.Set(ctx, "short", []byte("x"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.SetForever(ctx, "pin", []byte("keep")); err != nil {
		t.Fatalf("set forever failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "short"); ok {
		t.Fatalf("expected default ttl expiry")
	}
	body, ok, err := store.Get(ctx, "pin")
	if err != nil || !ok || string(body) != "keep" {
		t.Fatalf("expected forever entry to survive: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreFlushTagRemovesOnlyTaggedKeys(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(time.Minute, time.Minute)

	users := store.WithTags("users")
	if err := users.Set(ctx, "u1", []byte("a"), time.Minute); err != nil {
		t.Fatalf("tagged set failed: %v", err)
	}
	if err := users.SetForever(ctx, "u2", []byte("b")); err != nil {
		t.Fatalf("tagged set forever failed: %v", err)
	}
	if err := store.Set(ctx, "plain", []byte("c"), time.Minute); err != nil {
		t.Fatalf("untagged set failed: %v", err)
	}

	if err := store.FlushTag(ctx, "users"); err != nil {
		t.Fatalf("flush tag failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "u1"); ok {
		t.Fatalf("expected u1 flushed")
	}
	if _, ok, _ := store.Get(ctx, "u2"); ok {
		t.Fatalf("expected u2 flushed")
	}
	if _, ok, _ := store.Get(ctx, "plain"); !ok {
		t.Fatalf("expected untagged entry to survive")
	}

	// Second flush of the same tag is a no-op.
	if err := store.FlushTag(ctx, "users"); err != nil {
		t.Fatalf("repeat flush failed: %v", err)
	}
}

func TestMemoryStoreFlushClearsTagIndex(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(time.Minute, time.Minute)

	if err := store.WithTags("users").Set(ctx, "u1", []byte("a"), time.Minute); err != nil {
		t.Fatalf("tagged set failed: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	store.mu.Lock()
	indexed := len(store.tagIndex)
	store.mu.Unlock()
	if indexed != 0 {
		t.Fatalf("expected tag index cleared, %d tags remain", indexed)
	}
}

func TestMemoryStoreTaggedViewWidens(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(time.Minute, time.Minute)

	view, ok := store.WithTags("users").(TagStore)
	if !ok {
		t.Fatalf("expected tagged view to stay tag-capable")
	}
	both := view.WithTags("posts")
	if err := both.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := store.FlushTag(ctx, "posts"); err != nil {
		t.Fatalf("flush tag failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected entry indexed under the widened tag")
	}
}
