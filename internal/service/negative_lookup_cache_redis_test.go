package service

import (
	"context"
	"testing"
	"time"
)

func TestRedisNegativeLookupSetAndGet(t *testing.T) {
	_, client := newRedisClientForTest(t)
	store := NewRedisNegativeLookupCacheStore(client, "test")
	ctx := context.Background()

	if hit, err := store.Get(ctx, "customer", "1"); err != nil || hit {
		t.Fatalf("empty cache: hit=%v err=%v", hit, err)
	}
	if err := store.Set(ctx, "customer", "1", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if hit, err := store.Get(ctx, "customer", "1"); err != nil || !hit {
		t.Fatalf("get: hit=%v err=%v", hit, err)
	}
	// Other namespaces are unaffected.
	if hit, _ := store.Get(ctx, "other", "1"); hit {
		t.Fatal("namespace leak")
	}
}

func TestRedisNegativeLookupExpiry(t *testing.T) {
	server, client := newRedisClientForTest(t)
	store := NewRedisNegativeLookupCacheStore(client, "test")
	ctx := context.Background()

	if err := store.Set(ctx, "customer", "1", time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	server.FastForward(2 * time.Second)
	if hit, err := store.Get(ctx, "customer", "1"); err != nil || hit {
		t.Fatalf("expected expiry, hit=%v err=%v", hit, err)
	}
}

func TestRedisNegativeLookupInvalidateNamespace(t *testing.T) {
	_, client := newRedisClientForTest(t)
	store := NewRedisNegativeLookupCacheStore(client, "test")
	ctx := context.Background()

	if err := store.Set(ctx, "customer", "1", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "customer", "2", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.InvalidateNamespace(ctx, "customer"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	for _, key := range []string{"1", "2"} {
		if hit, _ := store.Get(ctx, "customer", key); hit {
			t.Fatalf("key %s must be gone after namespace invalidation", key)
		}
	}
}
