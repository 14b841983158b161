package repository

import (
	"context"

	"github.com/user/serp-tracker/internal/entity"
)

// SerpFetcher performs one external page request against the search provider.
// It never touches the quota ledger; accounting belongs to the caller.
type SerpFetcher interface {
	// FetchPage returns the organic hits of 1-based page. Hit ranks are global:
	// (page-1)*pageSize + offset + 1. An empty slice means no more results.
	FetchPage(ctx context.Context, query, location string, page, pageSize int) ([]entity.SearchHit, error)
}

// PageWindow is implemented by fetchers that serve a bounded number of results.
// LastPage is the deepest page that still costs a request at pageSize.
type PageWindow interface {
	LastPage(pageSize int) int
}

// SerpScraper fetches a generic result page through an alternate channel, without quota.
type SerpScraper interface {
	Scrape(ctx context.Context, query, location string) ([]entity.SearchHit, error)
}
