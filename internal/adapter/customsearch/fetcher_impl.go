package customsearch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/metrics"
	"github.com/user/serp-tracker/pkg/ratelimit"
)

const (
	providerName = "customsearch"
	// resultWindow is the deepest rank the API will serve.
	resultWindow = 100
)

// Config holds the search API settings.
type Config struct {
	APIKey          string
	EngineID        string
	Endpoint        string
	Language        string
	Region          string
	CountryRestrict string
	RPS             float64
	Timeout         time.Duration
	MaxRetries      int
}

// FetcherImpl provides a concrete implementation for the SerpFetcher interface on top of the
// Custom Search JSON API.
type FetcherImpl struct {
	svc     *customsearch.Service
	cfg     Config
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewFetcher creates a new instance of FetcherImpl. It returns ErrProviderNotConfigured when
// credentials are missing.
func NewFetcher(ctx context.Context, cfg Config, m *metrics.Metrics, logger *zap.Logger) (*FetcherImpl, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, repository.ErrProviderNotConfigured
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, &repository.ProviderError{Provider: providerName, Message: "create service", Err: err}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &FetcherImpl{
		svc:     svc,
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RPS, 1),
		metrics: m,
		logger:  logger,
	}, nil
}

// LastPage returns the deepest page whose first rank is still inside the API's result window.
func (f *FetcherImpl) LastPage(pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	return (resultWindow-1)/pageSize + 1
}

// FetchPage requests one page of organic results. Pages past the API's result window fail with
// ErrEndOfResults without a request.
func (f *FetcherImpl) FetchPage(ctx context.Context, query, location string, page, pageSize int) ([]entity.SearchHit, error) {
	if page < 1 {
		return nil, repository.InvalidArgument("page must be >= 1, got %d", page)
	}
	if pageSize < 1 || pageSize > 10 {
		return nil, repository.InvalidArgument("page size must be within 1..10, got %d", pageSize)
	}
	start := (page-1)*pageSize + 1
	if start > resultWindow {
		return nil, repository.ErrEndOfResults
	}

	q := query
	if location != "" {
		q = query + " " + location
	}

	op := func() (*customsearch.Search, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()

		call := f.svc.Cse.List().
			Q(q).
			Cx(f.cfg.EngineID).
			Num(int64(pageSize)).
			Start(int64(start)).
			Context(callCtx)
		if f.cfg.Language != "" {
			call = call.Hl(f.cfg.Language)
		}
		if f.cfg.Region != "" {
			call = call.Gl(f.cfg.Region)
		}
		if location != "" && f.cfg.CountryRestrict != "" {
			call = call.Cr(f.cfg.CountryRestrict)
		}

		res, err := call.Do()
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if f.retryable(err) {
			f.logger.Warn("Search API call failed, retrying",
				zap.String("query", q),
				zap.Int("page", page),
				zap.Error(err),
			)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(f.cfg.MaxRetries+1)),
	)
	if err != nil {
		f.metrics.PageFetchesTotal.WithLabelValues(providerName, "failure").Inc()
		return nil, toProviderError(err)
	}
	f.metrics.PageFetchesTotal.WithLabelValues(providerName, "success").Inc()

	hits := make([]entity.SearchHit, 0, len(res.Items))
	for i, item := range res.Items {
		if item == nil || item.Link == "" {
			continue
		}
		hits = append(hits, entity.NewSearchHit(start+i, item.Title, item.Link, item.Snippet))
	}
	return hits, nil
}

// retryable reports transient failures: timeouts, throttling and 5xx.
func (f *FetcherImpl) retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			f.limiter.Throttled(retryAfter(gerr.Header))
			return true
		}
		return gerr.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func toProviderError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &repository.ProviderError{Provider: providerName, StatusCode: gerr.Code, Message: msg, Err: err}
	}
	return &repository.ProviderError{Provider: providerName, Err: err}
}
