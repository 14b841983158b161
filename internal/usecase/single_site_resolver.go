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
)

// SingleSiteResolver tries each provider in order and returns the first success.
type SingleSiteResolver struct {
	providers []PositionProvider
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSingleSiteResolver creates a resolver over the given fallback chain.
func NewSingleSiteResolver(providers []PositionProvider, m *metrics.Metrics, logger *zap.Logger) *SingleSiteResolver {
	return &SingleSiteResolver{providers: providers, metrics: m, logger: logger}
}

// Resolve locates website for query. It fails only when every provider failed, when the input
// is invalid, or when ctx ends.
func (r *SingleSiteResolver) Resolve(ctx context.Context, website, query, location string) (*entity.SingleSiteResult, error) {
	if strings.TrimSpace(website) == "" {
		return nil, repository.InvalidArgument("website is empty")
	}
	if strings.TrimSpace(query) == "" {
		return nil, repository.InvalidArgument("query is empty")
	}

	start := time.Now()
	defer func() {
		r.metrics.ResolutionDuration.WithLabelValues(string(entity.KindSingleSite)).Observe(time.Since(start).Seconds())
	}()

	var errs []error
	for _, p := range r.providers {
		res, err := p.Locate(ctx, website, query, location)
		if err == nil {
			r.metrics.ResolutionsTotal.WithLabelValues(string(entity.KindSingleSite), string(p.Method()), "success").Inc()
			r.logger.Info("Single-site position resolved",
				zap.String("website", website),
				zap.String("query", query),
				zap.String("method", string(p.Method())),
				zap.Bool("found", res.Found),
			)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, repository.ErrInvalidArgument) {
			return nil, err
		}

		r.metrics.ResolutionsTotal.WithLabelValues(string(entity.KindSingleSite), string(p.Method()), repository.ErrorKind(err)).Inc()
		r.logger.Warn("Position provider failed, falling back",
			zap.String("website", website),
			zap.String("method", string(p.Method())),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("%s: %w", p.Method(), err))
	}

	if len(errs) == 0 {
		return nil, repository.ErrProviderNotConfigured
	}
	return nil, errors.Join(errs...)
}
