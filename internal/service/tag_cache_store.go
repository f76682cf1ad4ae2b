package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TagCacheStore caches resolved authorization tags per customer and access
// token. Invalidation bumps an epoch instead of deleting keys, so stale
// entries simply stop being addressable.
type TagCacheStore interface {
	Get(ctx context.Context, customerID uint, tokenID string) ([]string, bool, error)
	Set(ctx context.Context, customerID uint, tokenID string, tags []string, ttl time.Duration) error
	InvalidateCustomer(ctx context.Context, customerID uint) error
	InvalidateAll(ctx context.Context) error
}

type NoopTagCacheStore struct{}

func NewNoopTagCacheStore() *NoopTagCacheStore { return &NoopTagCacheStore{} }

func (s *NoopTagCacheStore) Get(context.Context, uint, string) ([]string, bool, error) {
	return nil, false, nil
}

func (s *NoopTagCacheStore) Set(context.Context, uint, string, []string, time.Duration) error {
	return nil
}

func (s *NoopTagCacheStore) InvalidateCustomer(context.Context, uint) error { return nil }

func (s *NoopTagCacheStore) InvalidateAll(context.Context) error { return nil }

type tagCacheEntry struct {
	tags      []string
	expiresAt time.Time
}

type InMemoryTagCacheStore struct {
	mu            sync.RWMutex
	data          map[string]tagCacheEntry
	globalEpoch   uint64
	customerEpoch map[uint]uint64
}

func NewInMemoryTagCacheStore() *InMemoryTagCacheStore {
	return &InMemoryTagCacheStore{
		data:          make(map[string]tagCacheEntry),
		customerEpoch: make(map[uint]uint64),
	}
}

func (s *InMemoryTagCacheStore) Get(_ context.Context, customerID uint, tokenID string) ([]string, bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	key := s.cacheKeyLocked(customerID, tokenID)
	entry, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]string(nil), entry.tags...), true, nil
}

func (s *InMemoryTagCacheStore) Set(_ context.Context, customerID uint, tokenID string, tags []string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.cacheKeyLocked(customerID, tokenID)
	s.data[key] = tagCacheEntry{
		tags:      append([]string(nil), tags...),
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *InMemoryTagCacheStore) InvalidateCustomer(_ context.Context, customerID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customerEpoch[customerID]++
	return nil
}

func (s *InMemoryTagCacheStore) InvalidateAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalEpoch++
	return nil
}

func (s *InMemoryTagCacheStore) cacheKeyLocked(customerID uint, tokenID string) string {
	return buildTagCacheKey(s.globalEpoch, s.customerEpoch[customerID], customerID, tokenID)
}

func buildTagCacheKey(globalEpoch, customerEpoch uint64, customerID uint, tokenID string) string {
	return fmt.Sprintf("g%d:c%d:%d:%s", globalEpoch, customerEpoch, customerID, hashToken(tokenID))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func normalizeToken(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "none"
	}
	return v
}
