package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/storekit/storefront-backend/internal/repository"
)

const customerLookupNamespace = "customer"

// CachedTagResolver resolves a subject's current authorization tags, caching
// positives per (customer, token) and negatives (vanished subjects) per
// customer so deleted accounts fail fast without a persistence hit.
type CachedTagResolver struct {
	cache     TagCacheStore
	negatives NegativeLookupCacheStore
	lookup    CustomerLookup
	ttl       time.Duration
}

func NewCachedTagResolver(cache TagCacheStore, negatives NegativeLookupCacheStore, lookup CustomerLookup, ttl time.Duration) *CachedTagResolver {
	if cache == nil {
		cache = NewNoopTagCacheStore()
	}
	if negatives == nil {
		negatives = NewNoopNegativeLookupCacheStore()
	}
	return &CachedTagResolver{cache: cache, negatives: negatives, lookup: lookup, ttl: ttl}
}

func (r *CachedTagResolver) ResolveTags(ctx context.Context, customerID uint, tokenID string) ([]string, error) {
	if tokenID == "" {
		tokenID = "none"
	}
	customerKey := strconv.FormatUint(uint64(customerID), 10)

	if vanished, err := r.negatives.Get(ctx, customerLookupNamespace, customerKey); err == nil && vanished {
		return nil, ErrSubjectVanished
	}
	if r.ttl > 0 {
		if tags, ok, err := r.cache.Get(ctx, customerID, tokenID); err == nil && ok {
			return tags, nil
		}
	}

	_, tags, err := r.lookup.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			_ = r.negatives.Set(ctx, customerLookupNamespace, customerKey, r.ttl)
			return nil, ErrSubjectVanished
		}
		return nil, err
	}
	if r.ttl > 0 {
		_ = r.cache.Set(ctx, customerID, tokenID, tags, r.ttl)
	}
	return tags, nil
}

// InvalidateCustomer drops cached tags after role changes or deletion.
func (r *CachedTagResolver) InvalidateCustomer(ctx context.Context, customerID uint) error {
	return r.cache.InvalidateCustomer(ctx, customerID)
}
