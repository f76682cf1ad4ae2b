package service

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryNegativeLookupCache(t *testing.T) {
	store := NewInMemoryNegativeLookupCacheStore()
	ctx := context.Background()

	if hit, err := store.Get(ctx, "customer", "1"); err != nil || hit {
		t.Fatalf("empty store: hit=%v err=%v", hit, err)
	}
	if err := store.Set(ctx, "customer", "1", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if hit, _ := store.Get(ctx, "customer", "1"); !hit {
		t.Fatal("expected hit after set")
	}
	if hit, _ := store.Get(ctx, "other", "1"); hit {
		t.Fatal("namespaces must be isolated")
	}

	if err := store.InvalidateNamespace(ctx, "customer"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if hit, _ := store.Get(ctx, "customer", "1"); hit {
		t.Fatal("expected miss after namespace invalidation")
	}
}

func TestInMemoryNegativeLookupCacheExpiry(t *testing.T) {
	store := NewInMemoryNegativeLookupCacheStore()
	ctx := context.Background()

	if err := store.Set(ctx, "customer", "1", time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if hit, _ := store.Get(ctx, "customer", "1"); hit {
		t.Fatal("expected entry to expire")
	}
}

func TestInMemoryNegativeLookupCacheZeroTTLIsNoop(t *testing.T) {
	store := NewInMemoryNegativeLookupCacheStore()
	ctx := context.Background()

	if err := store.Set(ctx, "customer", "1", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if hit, _ := store.Get(ctx, "customer", "1"); hit {
		t.Fatal("zero ttl must not store anything")
	}
}

func TestInMemoryTagCacheEpochInvalidation(t *testing.T) {
	store := NewInMemoryTagCacheStore()
	ctx := context.Background()

	if err := store.Set(ctx, 1, "tok", []string{"customer"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, 2, "tok", []string{"customer"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := store.InvalidateCustomer(ctx, 1); err != nil {
		t.Fatalf("invalidate customer: %v", err)
	}
	if _, ok, _ := store.Get(ctx, 1, "tok"); ok {
		t.Fatal("customer 1 entries must be unaddressable after epoch bump")
	}
	if _, ok, _ := store.Get(ctx, 2, "tok"); !ok {
		t.Fatal("customer 2 entries must survive")
	}

	if err := store.InvalidateAll(ctx); err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if _, ok, _ := store.Get(ctx, 2, "tok"); ok {
		t.Fatal("no entry survives a global epoch bump")
	}
}
