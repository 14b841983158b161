package repository

import (
	"context"
	"time"
)

// ResultCache stores derived analysis results under a request fingerprint.
type ResultCache interface {
	// Get decodes the entry for key into dst. It reports false on a miss.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Put stores value under key, overwriting any previous entry, for ttl.
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
}
