package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/adapter/chromedp_crawler"
	"github.com/user/serp-tracker/internal/adapter/customsearch"
	"github.com/user/serp-tracker/internal/adapter/memory"
	"github.com/user/serp-tracker/internal/adapter/postgres"
	redis_adapter "github.com/user/serp-tracker/internal/adapter/redis"
	"github.com/user/serp-tracker/internal/delivery/http/handler"
	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/internal/usecase"
	"github.com/user/serp-tracker/pkg/config"
	"github.com/user/serp-tracker/pkg/logger"
	"github.com/user/serp-tracker/pkg/metrics"
)

// app holds every wired component of one process.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	rdb  *redis.Client
	pool *pgxpool.Pool

	queue   repository.JobQueue
	results repository.SeoResultRepository

	quota      *usecase.QuotaAccountant
	campaign   *usecase.CampaignResolver
	singleSite *usecase.SingleSiteResolver
	dispatcher *usecase.AnalysisDispatcher

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if err := a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}

	ledger, cache := a.stores()
	a.quota = usecase.NewQuotaAccountant(ledger, cfg.DailyQuotaLimit, a.metrics, log)

	fetcher, err := customsearch.NewFetcher(ctx, customsearch.Config{
		APIKey:          cfg.GoogleAPIKey,
		EngineID:        cfg.GoogleEngineID,
		Endpoint:        cfg.GoogleEndpoint,
		Language:        cfg.SearchLanguage,
		Region:          cfg.SearchRegion,
		CountryRestrict: cfg.SearchCountryRestrict,
		RPS:             cfg.ProviderRPS,
		Timeout:         cfg.FetchTimeout,
		MaxRetries:      cfg.FetchMaxRetries,
	}, a.metrics, log)
	switch {
	case errors.Is(err, repository.ErrProviderNotConfigured):
		log.Warn("Search API credentials missing, campaign analyses will fail and single-site analyses fall back")
	case err != nil:
		a.close()
		return nil, err
	}

	var siteResolver *usecase.CampaignResolver
	if fetcher != nil {
		a.campaign = usecase.NewCampaignResolver(fetcher, cache, a.quota, usecase.CampaignOptions{
			PageSize:   cfg.PageSize,
			CacheTTL:   cfg.CampaignCacheTTL,
			PageDelay:  cfg.PageDelay,
			CacheScope: "campaign",
		}, a.metrics, log)
		siteResolver = usecase.NewCampaignResolver(fetcher, cache, a.quota, usecase.CampaignOptions{
			PageSize:   cfg.PageSize,
			CacheTTL:   cfg.SingleSiteCacheTTL,
			PageDelay:  cfg.PageDelay,
			CacheScope: "site",
		}, a.metrics, log)
	} else {
		a.campaign = usecase.NewCampaignResolver(unconfiguredFetcher{}, cache, a.quota, usecase.CampaignOptions{
			PageSize:   cfg.PageSize,
			CacheTTL:   cfg.CampaignCacheTTL,
			CacheScope: "campaign",
		}, a.metrics, log)
	}

	providers := []usecase.PositionProvider{usecase.NewAPIProvider(siteResolver, cfg.SingleSiteMaxPages)}
	if cfg.ScraperEnabled {
		scraper := chromedp_crawler.NewScraper(chromedp_crawler.ScraperConfig{
			Timeout:        cfg.ScrapeTimeout,
			Language:       cfg.SearchLanguage,
			Region:         cfg.SearchRegion,
			MaxConcurrency: cfg.AnalysisWorkers,
			RPS:            0.2,
		}, a.metrics, log)
		a.closers = append(a.closers, scraper.Close)
		providers = append(providers, usecase.NewScrapeProvider(scraper))
	}
	if cfg.SimulationEnabled {
		providers = append(providers, usecase.SimulatedProvider{})
	}
	a.singleSite = usecase.NewSingleSiteResolver(providers, a.metrics, log)

	a.dispatcher = usecase.NewAnalysisDispatcher(a.queue, a.campaign, a.singleSite, a.results, usecase.DispatcherOptions{
		Workers:         cfg.AnalysisWorkers,
		JobTimeout:      cfg.JobTimeout,
		MaxAttempts:     cfg.JobMaxAttempts,
		RetryDelay:      cfg.JobRetryDelay,
		JitterMin:       cfg.JitterMin,
		JitterMax:       cfg.JitterMax,
		DefaultMaxPages: cfg.DefaultMaxPages,
	}, a.metrics, log)

	return a, nil
}

// connect opens the stores the configuration asks for.
func (a *app) connect(ctx context.Context) error {
	if a.cfg.QuotaStore != "memory" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { a.rdb.Close() })
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("unable to connect to redis: %w", err)
		}
		a.logger.Info("Redis connection established", zap.String("addr", a.cfg.RedisAddr))
	}

	if a.cfg.PostgresURL != "" {
		pool, err := postgres.NewPool(ctx, a.cfg.PostgresURL)
		if err != nil {
			return err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		a.results = postgres.NewSeoResultRepo(pool)
		a.logger.Info("PostgreSQL connection pool established")
	} else if a.cfg.QuotaStore == "postgres" {
		return errors.New("QUOTA_STORE=postgres requires POSTGRES_URL")
	}
	return nil
}

// stores picks the ledger, cache and queue implementations.
func (a *app) stores() (repository.QuotaLedger, repository.ResultCache) {
	switch a.cfg.QuotaStore {
	case "memory":
		a.queue = memory.NewJobQueue()
		return memory.NewQuotaLedger(), memory.NewResultCache()
	case "postgres":
		a.queue = redis_adapter.NewJobQueue(a.rdb)
		return postgres.NewQuotaLedger(a.pool), redis_adapter.NewResultCache(a.rdb)
	default:
		a.queue = redis_adapter.NewJobQueue(a.rdb)
		return redis_adapter.NewQuotaLedger(a.rdb), redis_adapter.NewResultCache(a.rdb)
	}
}

// pruneQuota drops postgres ledger rows older than the redis TTL would keep.
func (a *app) pruneQuota(ctx context.Context) {
	if a.cfg.QuotaStore != "postgres" || a.pool == nil {
		return
	}
	cutoff := entity.QuotaDay(time.Now().Add(-48 * time.Hour))
	n, err := postgres.NewQuotaLedger(a.pool).DeleteBefore(ctx, cutoff)
	if err != nil {
		a.logger.Warn("Failed to prune quota ledger", zap.Error(err))
		return
	}
	a.logger.Info("Pruned quota ledger", zap.Int64("rows", n), zap.String("before", cutoff))
}

func (a *app) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	if a.pool != nil {
		checks["postgres"] = a.pool.Ping
	}
	return checks
}

func (a *app) close() {
	if a.quota != nil {
		if err := a.quota.Flush(context.Background()); err != nil {
			a.logger.Error("Unwritten quota units lost on exit", zap.Int64("pending", a.quota.Pending()), zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// unconfiguredFetcher stands in for the search API when no credentials are set.
type unconfiguredFetcher struct{}

func (unconfiguredFetcher) FetchPage(context.Context, string, string, int, int) ([]entity.SearchHit, error) {
	return nil, repository.ErrProviderNotConfigured
}
