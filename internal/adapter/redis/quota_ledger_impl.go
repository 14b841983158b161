package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/serp-tracker/internal/repository"
)

const (
	quotaKeyPrefix = "serp:quota:"
	// Day counters outlive their day so late readers still see yesterday's total.
	quotaKeyExpiry = 48 * time.Hour
)

// QuotaLedgerImpl provides a concrete implementation for the QuotaLedger interface using Redis counters.
type QuotaLedgerImpl struct {
	client redis.UniversalClient
}

// NewQuotaLedger creates a new instance of QuotaLedgerImpl.
func NewQuotaLedger(client redis.UniversalClient) *QuotaLedgerImpl {
	return &QuotaLedgerImpl{client: client}
}

func (r *QuotaLedgerImpl) generateKey(day string) string {
	return quotaKeyPrefix + day
}

// Consumed returns the day's counter, 0 when the key does not exist.
func (r *QuotaLedgerImpl) Consumed(ctx context.Context, day string) (int64, error) {
	val, err := r.client.Get(ctx, r.generateKey(day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, repository.Infrastructure("redis", "quota get", err)
	}
	return val, nil
}

// Increment adds n with INCRBY and refreshes the expiry in one MULTI/EXEC.
func (r *QuotaLedgerImpl) Increment(ctx context.Context, day string, n int64) error {
	if n <= 0 {
		return nil
	}
	key := r.generateKey(day)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.IncrBy(ctx, key, n)
		pipe.Expire(ctx, key, quotaKeyExpiry)
		return nil
	})
	return repository.Infrastructure("redis", "quota incr", err)
}
