package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/metrics"
)

// DispatcherOptions tunes the worker pool.
type DispatcherOptions struct {
	Workers         int
	PollInterval    time.Duration
	JobTimeout      time.Duration
	MaxAttempts     int
	RetryDelay      time.Duration
	JitterMin       time.Duration
	JitterMax       time.Duration
	DefaultMaxPages int
}

// Outcome is what one executed request produced.
type Outcome struct {
	Campaign *entity.CampaignAnalysisResult `json:"campaign,omitempty"`
	Sites    []*entity.SingleSiteResult     `json:"sites,omitempty"`
	Rows     []*entity.SeoResult            `json:"-"`
}

// AnalysisDispatcher queues analysis requests and runs them on a pool of workers.
type AnalysisDispatcher struct {
	queue      repository.JobQueue
	campaign   *CampaignResolver
	singleSite *SingleSiteResolver
	results    repository.SeoResultRepository
	opts       DispatcherOptions
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	stopChan chan struct{}
	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewAnalysisDispatcher creates a dispatcher. results may be nil, in which case outcomes are
// only logged.
func NewAnalysisDispatcher(
	queue repository.JobQueue,
	campaign *CampaignResolver,
	singleSite *SingleSiteResolver,
	results repository.SeoResultRepository,
	opts DispatcherOptions,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AnalysisDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.DefaultMaxPages <= 0 {
		opts.DefaultMaxPages = 20
	}
	return &AnalysisDispatcher{
		queue:      queue,
		campaign:   campaign,
		singleSite: singleSite,
		results:    results,
		opts:       opts,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Submit queues req to run no earlier than notBefore and returns the job ID.
func (d *AnalysisDispatcher) Submit(ctx context.Context, req entity.AnalysisRequest, notBefore time.Time) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	now := d.now()
	if notBefore.IsZero() {
		notBefore = now
	}
	job := &entity.AnalysisJob{
		ID:         uuid.NewString(),
		Request:    req,
		NotBefore:  notBefore,
		EnqueuedAt: now,
	}
	if err := d.queue.Push(ctx, job); err != nil {
		return "", fmt.Errorf("failed to queue analysis: %w", err)
	}
	d.updateQueueGauge(ctx)
	d.logger.Info("Analysis queued",
		zap.String("job_id", job.ID),
		zap.String("kind", string(req.Kind)),
		zap.String("query", req.Query),
		zap.Time("not_before", notBefore),
	)
	return job.ID, nil
}

// SubmitWithJitter queues req after a random delay within the configured jitter window.
func (d *AnalysisDispatcher) SubmitWithJitter(ctx context.Context, req entity.AnalysisRequest) (string, time.Time, error) {
	notBefore := d.now().Add(d.Jitter())
	id, err := d.Submit(ctx, req, notBefore)
	return id, notBefore, err
}

// Jitter draws a delay in [JitterMin, JitterMax].
func (d *AnalysisDispatcher) Jitter() time.Duration {
	span := d.opts.JitterMax - d.opts.JitterMin
	if span <= 0 {
		return d.opts.JitterMin
	}
	return d.opts.JitterMin + rand.N(span+1)
}

// Start launches the workers.
func (d *AnalysisDispatcher) Start() {
	d.baseCtx, d.cancel = context.WithCancel(context.Background())
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("Analysis workers started", zap.Int("workers", d.opts.Workers))
}

// Stop lets running jobs finish until ctx ends, then cancels them.
func (d *AnalysisDispatcher) Stop(ctx context.Context) {
	if d.cancel == nil {
		return
	}
	close(d.stopChan)
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("Shutdown deadline reached, canceling running analyses")
		d.cancel()
		<-done
	}
	d.cancel()
}

func (d *AnalysisDispatcher) worker(id int) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain(id)
		}
	}
}

// drain runs due jobs until none is left or the dispatcher stops.
func (d *AnalysisDispatcher) drain(worker int) {
	for {
		select {
		case <-d.stopChan:
			return
		default:
		}

		job, err := d.queue.PopDue(d.baseCtx, d.now())
		if err != nil {
			d.logger.Error("Failed to pop analysis job", zap.Int("worker", worker), zap.Error(err))
			return
		}
		if job == nil {
			return
		}
		d.updateQueueGauge(d.baseCtx)
		d.process(job)
	}
}

func (d *AnalysisDispatcher) process(job *entity.AnalysisJob) {
	ctx := d.baseCtx
	if d.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.JobTimeout)
		defer cancel()
	}

	job.Attempt++
	d.logger.Info("Processing analysis job",
		zap.String("job_id", job.ID),
		zap.String("query", job.Request.Query),
		zap.Int("attempt", job.Attempt),
	)
	if _, err := d.Execute(ctx, job.Request); err != nil {
		d.handleFailure(job, err)
	}
}

func (d *AnalysisDispatcher) handleFailure(job *entity.AnalysisJob, jobErr error) {
	job.LastError = jobErr.Error()
	if errors.Is(jobErr, repository.ErrInvalidArgument) || job.Attempt >= d.opts.MaxAttempts {
		d.logger.Error("Analysis failed permanently",
			zap.String("job_id", job.ID),
			zap.String("query", job.Request.Query),
			zap.Int("attempt", job.Attempt),
			zap.String("error_kind", repository.ErrorKind(jobErr)),
			zap.Error(jobErr),
		)
		return
	}

	job.NotBefore = d.now().Add(d.opts.RetryDelay)
	// The job may have been canceled with the dispatcher; requeue on a fresh context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.queue.Push(ctx, job); err != nil {
		d.logger.Error("Failed to requeue analysis", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	d.updateQueueGauge(ctx)
	d.logger.Warn("Analysis failed, will be retried",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Time("not_before", job.NotBefore),
		zap.Error(jobErr),
	)
}

// Execute runs req synchronously and persists the rows it produced.
func (d *AnalysisDispatcher) Execute(ctx context.Context, req entity.AnalysisRequest) (*Outcome, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	out := &Outcome{}
	switch req.Kind {
	case entity.KindCampaign:
		maxPages := req.MaxPages
		if maxPages == 0 {
			maxPages = d.opts.DefaultMaxPages
		}
		res, err := d.campaign.Resolve(ctx, req.Query, req.Websites, req.Location, maxPages)
		if err != nil {
			return nil, err
		}
		out.Campaign = res
		out.Rows = entity.SeoResultsFromCampaign(req.QueryID, res)
	case entity.KindSingleSite:
		for _, w := range req.Websites {
			res, err := d.singleSite.Resolve(ctx, w, req.Query, req.Location)
			if err != nil {
				return nil, err
			}
			out.Sites = append(out.Sites, res)
			out.Rows = append(out.Rows, entity.SeoResultFromSingleSite(req.QueryID, req.Location, res))
		}
	}

	if err := d.persist(ctx, out.Rows); err != nil {
		return out, err
	}
	return out, nil
}

func (d *AnalysisDispatcher) persist(ctx context.Context, rows []*entity.SeoResult) error {
	if d.results == nil || len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		prev, err := d.results.LatestForWebsite(ctx, row.Query, row.Website)
		if err != nil {
			d.logger.Warn("Failed to load previous position", zap.String("website", row.Website), zap.Error(err))
			continue
		}
		trend := entity.ComparePositions(prev, row)
		fields := []zap.Field{
			zap.String("website", row.Website),
			zap.String("query", row.Query),
			zap.String("trend", string(trend.Status)),
			zap.Int("change", trend.Change),
		}
		if row.Position != nil {
			fields = append(fields, zap.Int("position", *row.Position))
		}
		d.logger.Info("Position trend", fields...)
	}
	if err := d.results.SaveAll(ctx, rows); err != nil {
		return fmt.Errorf("failed to persist %d results: %w", len(rows), err)
	}
	return nil
}

func (d *AnalysisDispatcher) updateQueueGauge(ctx context.Context) {
	n, err := d.queue.Size(ctx)
	if err != nil {
		return
	}
	d.metrics.JobsInQueue.Set(float64(n))
}

func validateRequest(req entity.AnalysisRequest) error {
	switch req.Kind {
	case entity.KindCampaign, entity.KindSingleSite:
	default:
		return repository.InvalidArgument("unknown analysis kind %q", req.Kind)
	}
	if strings.TrimSpace(req.Query) == "" {
		return repository.InvalidArgument("query is empty")
	}
	if len(req.Websites) == 0 {
		return repository.InvalidArgument("no websites given")
	}
	if req.MaxPages < 0 {
		return repository.InvalidArgument("max pages must not be negative, got %d", req.MaxPages)
	}
	return nil
}
