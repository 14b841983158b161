package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/metrics"
	"github.com/user/serp-tracker/pkg/utils"
)

// CampaignOptions tunes one CampaignResolver.
type CampaignOptions struct {
	PageSize  int
	CacheTTL  time.Duration
	PageDelay time.Duration
	// CacheScope prefixes cache keys and labels cache metrics.
	CacheScope string
}

// CampaignResolver finds every target website of a campaign in one paginated scan.
type CampaignResolver struct {
	fetcher repository.SerpFetcher
	cache   repository.ResultCache
	quota   *QuotaAccountant
	opts    CampaignOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// cachedScan is the domain-level outcome stored in the cache. Original website strings are
// re-attached on every read, so callers spelling the same domains differently share entries.
type cachedScan struct {
	Found         map[string]entity.FoundWebsite `json:"found"`
	PagesScanned  int                            `json:"pages_scanned"`
	QuotaConsumed int                            `json:"quota_consumed"`
	AnalyzedAt    time.Time                      `json:"analyzed_at"`
}

// NewCampaignResolver creates a new CampaignResolver.
func NewCampaignResolver(
	fetcher repository.SerpFetcher,
	cache repository.ResultCache,
	quota *QuotaAccountant,
	opts CampaignOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CampaignResolver {
	if opts.PageSize <= 0 || opts.PageSize > 10 {
		opts.PageSize = 10
	}
	if opts.CacheScope == "" {
		opts.CacheScope = "campaign"
	}
	return &CampaignResolver{
		fetcher: fetcher,
		cache:   cache,
		quota:   quota,
		opts:    opts,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolve scans up to maxPages result pages for query and reports the first position of every
// website. A failed page fetch aborts the scan and nothing is cached.
func (r *CampaignResolver) Resolve(ctx context.Context, query string, websites []string, location string, maxPages int) (*entity.CampaignAnalysisResult, error) {
	if maxPages <= 0 {
		return nil, repository.InvalidArgument("max pages must be positive, got %d", maxPages)
	}
	if strings.TrimSpace(query) == "" {
		return nil, repository.InvalidArgument("query is empty")
	}

	targets := entity.NewTargetSet(websites)
	if targets.Empty() {
		return &entity.CampaignAnalysisResult{
			Query:      query,
			Location:   location,
			Found:      map[string]entity.FoundWebsite{},
			NotFound:   []string{},
			AnalyzedAt: r.now().UTC(),
		}, nil
	}
	if len(targets.Domains()) == 0 {
		return r.assemble(query, location, targets, &cachedScan{AnalyzedAt: r.now().UTC()}, false), nil
	}

	start := time.Now()
	defer func() {
		r.metrics.ResolutionDuration.WithLabelValues(r.opts.CacheScope).Observe(time.Since(start).Seconds())
	}()

	key := r.opts.CacheScope + ":" + utils.Fingerprint(query, targets.Originals(), location)
	if scan, ok := r.lookup(ctx, key); ok {
		r.metrics.ResolutionsTotal.WithLabelValues(r.opts.CacheScope, "cache", "success").Inc()
		return r.assemble(query, location, targets, scan, true), nil
	}

	if w, ok := r.fetcher.(repository.PageWindow); ok {
		if last := w.LastPage(r.opts.PageSize); last > 0 && last < maxPages {
			maxPages = last
		}
	}
	scan, err := r.scan(ctx, query, location, targets, maxPages)
	if err != nil {
		r.metrics.ResolutionsTotal.WithLabelValues(r.opts.CacheScope, string(entity.MethodCampaign), repository.ErrorKind(err)).Inc()
		return nil, err
	}
	r.metrics.ResolutionsTotal.WithLabelValues(r.opts.CacheScope, string(entity.MethodCampaign), "success").Inc()

	if err := r.cache.Put(ctx, key, scan, r.opts.CacheTTL); err != nil {
		r.logger.Warn("Failed to cache campaign result", zap.String("query", query), zap.Error(err))
	}
	return r.assemble(query, location, targets, scan, false), nil
}

func (r *CampaignResolver) lookup(ctx context.Context, key string) (*cachedScan, bool) {
	var scan cachedScan
	ok, err := r.cache.Get(ctx, key, &scan)
	switch {
	case err != nil:
		r.metrics.CacheLookupsTotal.WithLabelValues(r.opts.CacheScope, "error").Inc()
		r.logger.Warn("Result cache unavailable, treating as miss", zap.Error(err))
		return nil, false
	case !ok:
		r.metrics.CacheLookupsTotal.WithLabelValues(r.opts.CacheScope, "miss").Inc()
		return nil, false
	}
	r.metrics.CacheLookupsTotal.WithLabelValues(r.opts.CacheScope, "hit").Inc()
	return &scan, true
}

func (r *CampaignResolver) scan(ctx context.Context, query, location string, targets *entity.TargetSet, maxPages int) (*cachedScan, error) {
	remaining := make(map[string]struct{}, len(targets.Domains()))
	for _, d := range targets.Domains() {
		remaining[d] = struct{}{}
	}
	scan := &cachedScan{Found: make(map[string]entity.FoundWebsite)}

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.quota.Reserve(ctx) {
			r.logger.Warn("Daily quota exhausted, aborting scan",
				zap.String("query", query),
				zap.Int("page", page),
				zap.Int("quota_consumed", scan.QuotaConsumed),
			)
			return nil, fmt.Errorf("before page %d: %w", page, repository.ErrQuotaExhausted)
		}

		hits, err := r.fetcher.FetchPage(ctx, query, location, page, r.opts.PageSize)
		if errors.Is(err, repository.ErrEndOfResults) {
			r.quota.Release()
			break
		}
		if err != nil {
			r.quota.Release()
			r.logger.Error("Page fetch failed, aborting scan",
				zap.String("query", query),
				zap.Int("page", page),
				zap.Error(err),
			)
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		scan.PagesScanned++
		scan.QuotaConsumed++
		r.quota.Commit(ctx)

		for _, hit := range hits {
			d := hit.Domain
			if d == "" {
				d = utils.ExtractDomain(hit.URL)
			}
			if _, ok := remaining[d]; !ok {
				continue
			}
			scan.Found[d] = entity.FoundWebsite{
				Domain:   d,
				Position: hit.Rank,
				Title:    hit.Title,
				URL:      hit.URL,
				Snippet:  hit.Snippet,
				Page:     page,
			}
			delete(remaining, d)
			r.logger.Debug("Target found", zap.String("domain", d), zap.Int("position", hit.Rank))
		}

		if len(remaining) == 0 || len(hits) < r.opts.PageSize || page == maxPages {
			break
		}
		if err := sleepCtx(ctx, r.opts.PageDelay); err != nil {
			return nil, err
		}
	}

	scan.AnalyzedAt = r.now().UTC()
	r.logger.Info("Campaign scan complete",
		zap.String("query", query),
		zap.String("location", location),
		zap.Int("found", len(scan.Found)),
		zap.Int("pages_scanned", scan.PagesScanned),
		zap.Int("quota_consumed", scan.QuotaConsumed),
	)
	return scan, nil
}

// assemble maps a domain-level scan back onto the caller's original website strings.
func (r *CampaignResolver) assemble(query, location string, targets *entity.TargetSet, scan *cachedScan, fromCache bool) *entity.CampaignAnalysisResult {
	res := &entity.CampaignAnalysisResult{
		Query:         query,
		Location:      location,
		Found:         make(map[string]entity.FoundWebsite),
		NotFound:      []string{},
		PagesScanned:  scan.PagesScanned,
		QuotaConsumed: scan.QuotaConsumed,
		AnalyzedAt:    scan.AnalyzedAt,
		FromCache:     fromCache,
	}
	for _, w := range targets.Originals() {
		f, ok := scan.Found[utils.ExtractDomain(w)]
		if !ok {
			res.NotFound = append(res.NotFound, w)
			continue
		}
		f.Website = w
		res.Found[w] = f
	}
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
