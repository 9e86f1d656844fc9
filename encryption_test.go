package querycache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestEncryptingStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := newMemoryStore(time.Minute, time.Minute)
	store, err := newEncryptingStore(inner, bytes.Repeat([]byte("k"), 32))
	if err != nil {
		t.Fatalf("encrypting store create failed: %v", err)
	}

	payload := []byte(`[{"ssn":"123-45-6789"}]`)
	if err := store.Set(ctx, "k", payload, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(body, payload) {
		t.Fatalf("round trip failed: ok=%v err=%v", ok, err)
	}

	// The backing store never sees plaintext.
	raw, ok, err := inner.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("raw read failed: ok=%v err=%v", ok, err)
	}
	if !bytes.HasPrefix(raw, encryptionMagic) {
		t.Fatalf("expected sealed payload on the inner store")
	}
	if bytes.Contains(raw, []byte("123-45-6789")) {
		t.Fatalf("plaintext leaked to the backing store")
	}
}

func TestEncryptingStoreRejectsBadKey(t *testing.T) {
	_, err := newEncryptingStore(newMemoryStore(time.Minute, time.Minute), []byte("short"))
	if !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected key length error, got %v", err)
	}
}

func TestEncryptingStoreEmptyKeyIsPassthrough(t *testing.T) {
	inner := newMemoryStore(time.Minute, time.Minute)
	store, err := newEncryptingStore(inner, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store != Store(inner) {
		t.Fatalf("expected empty key to return the inner store")
	}
}

func TestEncryptingStorePassthroughForUnsealedValues(t *testing.T) {
	ctx := context.Background()
	inner := newMemoryStore(time.Minute, time.Minute)
	store, err := newEncryptingStore(inner, bytes.Repeat([]byte("k"), 16))
	if err != nil {
		t.Fatalf("encrypting store create failed: %v", err)
	}

	// Values written before encryption was enabled read back untouched.
	if err := inner.Set(ctx, "legacy", []byte("plain"), time.Minute); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	body, ok, err := store.Get(ctx, "legacy")
	if err != nil || !ok || string(body) != "plain" {
		t.Fatalf("expected passthrough: ok=%v body=%s err=%v", ok, body, err)
	}
}

func TestEncryptingStoreWrongKeyFailsDecrypt(t *testing.T) {
	ctx := context.Background()
	inner := newMemoryStore(time.Minute, time.Minute)
	writer, err := newEncryptingStore(inner, bytes.Repeat([]byte("a"), 32))
	if err != nil {
		t.Fatalf("writer create failed: %v", err)
	}
	reader, err := newEncryptingStore(inner, bytes.Repeat([]byte("b"), 32))
	if err != nil {
		t.Fatalf("reader create failed: %v", err)
	}

	if err := writer.Set(ctx, "k", []byte("secret"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, _, err := reader.Get(ctx, "k"); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected decrypt failure, got %v", err)
	}
}

func TestEncryptingStorePreservesTagCapability(t *testing.T) {
	ctx := context.Background()
	store, err := newEncryptingStore(newMemoryStore(time.Minute, time.Minute), bytes.Repeat([]byte("k"), 24))
	if err != nil {
		t.Fatalf("encrypting store create failed: %v", err)
	}

	ts, ok := store.(TagStore)
	if !ok {
		t.Fatalf("expected encryption over a tag store to stay tag-capable")
	}
	if err := ts.WithTags("users").SetForever(ctx, "u1", []byte("sealed row")); err != nil {
		t.Fatalf("tagged set failed: %v", err)
	}
	if err := ts.FlushTag(ctx, "users"); err != nil {
		t.Fatalf("flush tag failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "u1"); ok {
		t.Fatalf("expected tagged entry flushed through the decorator")
	}
}
