package repository

import "context"

// QuotaLedger is day-scoped bookkeeping of consumed search-API calls.
// It does not enforce a cap; callers check the remaining budget before spending.
type QuotaLedger interface {
	// Consumed returns the count recorded for day (YYYY-MM-DD, UTC).
	Consumed(ctx context.Context, day string) (int64, error)
	// Increment atomically adds n to the day's counter. n <= 0 is a no-op.
	Increment(ctx context.Context, day string, n int64) error
}
