package repository

import (
	"context"

	"github.com/user/serp-tracker/internal/entity"
)

// SeoResultRepository persists resolver output.
type SeoResultRepository interface {
	// SaveAll stores all rows atomically.
	SaveAll(ctx context.Context, rows []*entity.SeoResult) error
	// LatestForWebsite returns the most recent row for website and query, or nil when none exists.
	LatestForWebsite(ctx context.Context, query, website string) (*entity.SeoResult, error)
}
