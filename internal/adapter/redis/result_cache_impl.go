package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/serp-tracker/internal/repository"
)

const resultCachePrefix = "serp:cache:"

// ResultCacheImpl provides a concrete implementation for the ResultCache interface using Redis strings.
type ResultCacheImpl struct {
	client redis.UniversalClient
}

// NewResultCache creates a new instance of ResultCacheImpl.
func NewResultCache(client redis.UniversalClient) *ResultCacheImpl {
	return &ResultCacheImpl{client: client}
}

// Get decodes the JSON entry stored under key into dst.
func (r *ResultCacheImpl) Get(ctx context.Context, key string, dst any) (bool, error) {
	payload, err := r.client.Get(ctx, resultCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, repository.Infrastructure("redis", "cache get", err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, repository.Infrastructure("redis", "cache decode", err)
	}
	return true, nil
}

// Put stores value as JSON with SET ... EX ttl.
func (r *ResultCacheImpl) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return repository.Infrastructure("redis", "cache set", r.client.Set(ctx, resultCachePrefix+key, payload, ttl).Err())
}
