package usecase

import (
	"context"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/utils"
)

// PositionProvider is one stage of the single-site fallback chain.
type PositionProvider interface {
	Method() entity.Method
	Locate(ctx context.Context, website, query, location string) (*entity.SingleSiteResult, error)
}

// APIProvider locates a website through the quota-tracked search API, reusing the campaign
// scan with a single target.
type APIProvider struct {
	resolver *CampaignResolver
	maxPages int
}

// NewAPIProvider creates an APIProvider. A nil resolver makes every call fail with
// ErrProviderNotConfigured.
func NewAPIProvider(resolver *CampaignResolver, maxPages int) *APIProvider {
	if maxPages <= 0 {
		maxPages = 1
	}
	return &APIProvider{resolver: resolver, maxPages: maxPages}
}

func (p *APIProvider) Method() entity.Method { return entity.MethodAPI }

func (p *APIProvider) Locate(ctx context.Context, website, query, location string) (*entity.SingleSiteResult, error) {
	if p.resolver == nil {
		return nil, repository.ErrProviderNotConfigured
	}
	res, err := p.resolver.Resolve(ctx, query, []string{website}, location, p.maxPages)
	if err != nil {
		return nil, err
	}

	var out *entity.SingleSiteResult
	if f, ok := res.Found[website]; ok {
		out = entity.FoundResult(website, query, entity.MethodAPI, entity.SearchHit{
			Rank:    f.Position,
			Title:   f.Title,
			URL:     f.URL,
			Snippet: f.Snippet,
			Domain:  f.Domain,
		})
	} else {
		out = entity.NotFoundResult(website, query, entity.MethodAPI)
	}
	if !res.FromCache {
		out.QuotaConsumed = res.QuotaConsumed
	}
	out.AnalyzedAt = res.AnalyzedAt
	return out, nil
}

// ScrapeProvider matches the website against one scraped result page.
type ScrapeProvider struct {
	scraper repository.SerpScraper
}

func NewScrapeProvider(scraper repository.SerpScraper) *ScrapeProvider {
	return &ScrapeProvider{scraper: scraper}
}

func (p *ScrapeProvider) Method() entity.Method { return entity.MethodScrapeHeuristic }

func (p *ScrapeProvider) Locate(ctx context.Context, website, query, location string) (*entity.SingleSiteResult, error) {
	hits, err := p.scraper.Scrape(ctx, query, location)
	if err != nil {
		return nil, err
	}
	for _, hit := range hits {
		if utils.SameDomain(hit.URL, website) {
			return entity.FoundResult(website, query, entity.MethodScrapeHeuristic, hit), nil
		}
	}
	return entity.NotFoundResult(website, query, entity.MethodScrapeHeuristic), nil
}

// SimulatedProvider produces a deterministic estimate. It never fails.
type SimulatedProvider struct{}

func (SimulatedProvider) Method() entity.Method { return entity.MethodSimulated }

func (SimulatedProvider) Locate(_ context.Context, website, query, _ string) (*entity.SingleSiteResult, error) {
	pos, found := SimulatePosition(website, query)
	if !found {
		return entity.NotFoundResult(website, query, entity.MethodSimulated), nil
	}
	title := "Result for " + utils.ExtractDomain(website)
	return entity.FoundResult(website, query, entity.MethodSimulated, entity.SearchHit{
		Rank:   pos,
		Title:  title,
		URL:    website,
		Domain: utils.ExtractDomain(website),
	}), nil
}
