package chromedp_crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/metrics"
	"github.com/user/serp-tracker/pkg/ratelimit"
)

const (
	providerName  = "scraper"
	searchBaseURL = "https://www.google.com/search"
)

// ScraperConfig holds the headless browser settings.
type ScraperConfig struct {
	Timeout        time.Duration
	Language       string
	Region         string
	MaxConcurrency int
	// RPS throttles navigations across all callers of one scraper.
	RPS float64
}

type renderFunc func(ctx context.Context, pageURL string, id Identity) (string, error)

// ScraperImpl provides a concrete implementation for the SerpScraper interface using chromedp.
type ScraperImpl struct {
	allocCtx   context.Context
	cancel     context.CancelFunc
	cfg        ScraperConfig
	sem        chan struct{}
	identities *IdentityRotator
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
	logger     *zap.Logger
	render     renderFunc
}

// NewScraper creates a scraper backed by one shared browser allocator. Call Close to release it.
func NewScraper(cfg ScraperConfig, m *metrics.Metrics, logger *zap.Logger) *ScraperImpl {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	s := newScraper(cfg, m, logger, nil)
	s.allocCtx, s.cancel = allocCtx, cancel
	s.render = s.renderPage
	return s
}

func newScraper(cfg ScraperConfig, m *metrics.Metrics, logger *zap.Logger, render renderFunc) *ScraperImpl {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &ScraperImpl{
		cfg:        cfg,
		cancel:     func() {},
		sem:        make(chan struct{}, cfg.MaxConcurrency),
		identities: NewIdentityRotator(),
		limiter:    ratelimit.New(cfg.RPS, 1),
		metrics:    m,
		logger:     logger,
		render:     render,
	}
}

// Close shuts the browser down.
func (s *ScraperImpl) Close() {
	s.cancel()
}

// Scrape loads one generic result page for query and extracts its hits.
func (s *ScraperImpl) Scrape(ctx context.Context, query, location string) ([]entity.SearchHit, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	pageURL := s.searchURL(query, location)
	id := s.identities.Next()
	start := time.Now()

	html, err := s.render(ctx, pageURL, id)
	if err != nil {
		s.metrics.PageFetchesTotal.WithLabelValues(providerName, "failure").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &repository.ProviderError{Provider: providerName, Message: "render result page", Err: err}
	}

	hits, err := ExtractHits(html)
	if err != nil {
		s.metrics.PageFetchesTotal.WithLabelValues(providerName, "failure").Inc()
		return nil, &repository.ProviderError{Provider: providerName, Message: "parse result page", Err: err}
	}
	if len(hits) == 0 {
		s.metrics.PageFetchesTotal.WithLabelValues(providerName, "failure").Inc()
		return nil, repository.ErrNoResults
	}

	s.metrics.PageFetchesTotal.WithLabelValues(providerName, "success").Inc()
	s.logger.Debug("Scraped result page",
		zap.String("query", query),
		zap.Int("hits", len(hits)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return hits, nil
}

func (s *ScraperImpl) searchURL(query, location string) string {
	q := query
	if location != "" {
		q = query + " " + location
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("num", strconv.Itoa(maxOrganicHits))
	if s.cfg.Language != "" {
		v.Set("hl", s.cfg.Language)
	}
	if s.cfg.Region != "" {
		v.Set("gl", s.cfg.Region)
	}
	return searchBaseURL + "?" + v.Encode()
}

func (s *ScraperImpl) renderPage(ctx context.Context, pageURL string, id Identity) (string, error) {
	taskCtx, cancel := chromedp.NewContext(s.allocCtx, chromedp.WithLogf(s.logger.Sugar().Debugf))
	defer cancel()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, s.cfg.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(taskCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(id.UserAgent).WithAcceptLanguage(id.AcceptLanguage),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": id.AcceptLanguage}),
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}
