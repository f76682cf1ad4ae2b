package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisTagCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTagCacheStore(client redis.UniversalClient, prefix string) *RedisTagCacheStore {
	if prefix == "" {
		prefix = "auth_tags"
	}
	return &RedisTagCacheStore{client: client, prefix: prefix}
}

func (s *RedisTagCacheStore) Get(ctx context.Context, customerID uint, tokenID string) ([]string, bool, error) {
	if s.client == nil {
		return nil, false, nil
	}
	key, err := s.dataKey(ctx, customerID, tokenID)
	if err != nil {
		return nil, false, err
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, false, err
	}
	return tags, true, nil
}

func (s *RedisTagCacheStore) Set(ctx context.Context, customerID uint, tokenID string, tags []string, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	key, err := s.dataKey(ctx, customerID, tokenID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

func (s *RedisTagCacheStore) InvalidateCustomer(ctx context.Context, customerID uint) error {
	if s.client == nil {
		return nil
	}
	return s.client.Incr(ctx, s.customerEpochKey(customerID)).Err()
}

func (s *RedisTagCacheStore) InvalidateAll(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Incr(ctx, s.globalEpochKey()).Err()
}

func (s *RedisTagCacheStore) dataKey(ctx context.Context, customerID uint, tokenID string) (string, error) {
	pipe := s.client.Pipeline()
	globalEpochCmd := pipe.Get(ctx, s.globalEpochKey())
	customerEpochCmd := pipe.Get(ctx, s.customerEpochKey(customerID))
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return "", err
	}
	globalEpoch, err := parseEpoch(globalEpochCmd)
	if err != nil {
		return "", err
	}
	customerEpoch, err := parseEpoch(customerEpochCmd)
	if err != nil {
		return "", err
	}
	return s.prefix + ":data:" + buildTagCacheKey(globalEpoch, customerEpoch, customerID, tokenID), nil
}

func parseEpoch(cmd *redis.StringCmd) (uint64, error) {
	v, err := cmd.Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisTagCacheStore) globalEpochKey() string {
	return s.prefix + ":epoch:global"
}

func (s *RedisTagCacheStore) customerEpochKey(customerID uint) string {
	return fmt.Sprintf("%s:epoch:customer:%d", s.prefix, customerID)
}
