package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/user/serp-tracker/internal/adapter/memory"
	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/metrics"
)

type dispatcherFixture struct {
	*resolverFixture
	queue   *memory.JobQueueImpl
	results *fakeResultRepo
	d       *AnalysisDispatcher
	logs    *observer.ObservedLogs
}

func newDispatcherFixture(opts DispatcherOptions) *dispatcherFixture {
	fx := newResolverFixture(100, nil)
	core, logs := observer.New(zapcore.InfoLevel)
	df := &dispatcherFixture{
		resolverFixture: fx,
		queue:           memory.NewJobQueue(),
		results:         newFakeResultRepo(),
		logs:            logs,
	}
	site := NewSingleSiteResolver([]PositionProvider{SimulatedProvider{}}, metrics.Nop(), zap.NewNop())
	df.d = NewAnalysisDispatcher(df.queue, fx.resolver, site, df.results, opts, metrics.Nop(), zap.New(core))
	return df
}

func campaignRequest() entity.AnalysisRequest {
	return entity.AnalysisRequest{
		Kind:     entity.KindCampaign,
		Query:    "pizzeria lyon",
		Websites: []string{"a.com", "b.com"},
		QueryID:  "q-1",
	}
}

func TestDispatcher_ExecuteCampaignPersistsWithTrend(t *testing.T) {
	df := newDispatcherFixture(DispatcherOptions{DefaultMaxPages: 2})
	df.fetcher.pages[1] = fullPage(1, map[int]string{4: "https://b.com/"})
	df.fetcher.pages[2] = fullPage(2, nil)

	out, err := df.d.Execute(context.Background(), campaignRequest())
	require.NoError(t, err)
	require.NotNil(t, out.Campaign)
	assert.Equal(t, 2, out.Campaign.PagesScanned)
	assert.Equal(t, []int{1, 2}, df.fetcher.Calls())

	rows := df.results.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "b.com", rows[0].Website)
	assert.Equal(t, 4, *rows[0].Position)
	assert.Equal(t, "q-1", rows[0].QueryID)
	assert.Equal(t, 1.0, rows[0].QuotaShare)
	assert.Equal(t, "a.com", rows[1].Website)
	assert.False(t, rows[1].Found)

	trends := df.logs.FilterMessage("Position trend").All()
	require.Len(t, trends, 2)
	assert.Equal(t, string(entity.TrendNew), trends[0].ContextMap()["trend"])

	// Second run hits the cache and compares against the stored rows.
	_, err = df.d.Execute(context.Background(), campaignRequest())
	require.NoError(t, err)
	trends = df.logs.FilterMessage("Position trend").All()
	require.Len(t, trends, 4)
	assert.Equal(t, string(entity.TrendStable), trends[2].ContextMap()["trend"])
}

func TestDispatcher_ExecuteSingleSite(t *testing.T) {
	df := newDispatcherFixture(DispatcherOptions{})
	req := entity.AnalysisRequest{Kind: entity.KindSingleSite, Query: "pizzeria lyon", Websites: []string{"https://pizzeria-lyon.fr", "http://xyz.org"}}

	out, err := df.d.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, out.Sites, 2)
	assert.Equal(t, entity.MethodSimulated, out.Sites[0].Method)
	assert.Len(t, df.results.Rows(), 2)
	assert.Equal(t, entity.MethodSimulated, df.results.Rows()[0].Method)
}

func TestDispatcher_SubmitValidates(t *testing.T) {
	df := newDispatcherFixture(DispatcherOptions{})
	ctx := context.Background()

	bad := []entity.AnalysisRequest{
		{Kind: "weekly", Query: "q", Websites: []string{"a.com"}},
		{Kind: entity.KindCampaign, Query: "", Websites: []string{"a.com"}},
		{Kind: entity.KindCampaign, Query: "q"},
		{Kind: entity.KindCampaign, Query: "q", Websites: []string{"a.com"}, MaxPages: -1},
	}
	for _, req := range bad {
		_, err := df.d.Submit(ctx, req, time.Time{})
		assert.ErrorIs(t, err, repository.ErrInvalidArgument)
	}
	n, err := df.queue.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_SubmitWithJitter(t *testing.T) {
	df := newDispatcherFixture(DispatcherOptions{JitterMin: 30 * time.Second, JitterMax: 2 * time.Minute})
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	df.d.now = func() time.Time { return now }

	for i := 0; i < 20; i++ {
		j := df.d.Jitter()
		assert.GreaterOrEqual(t, j, 30*time.Second)
		assert.LessOrEqual(t, j, 2*time.Minute)
	}

	id, notBefore, err := df.d.SubmitWithJitter(context.Background(), campaignRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.False(t, notBefore.Before(now.Add(30*time.Second)))

	job, err := df.queue.PopDue(context.Background(), now)
	require.NoError(t, err)
	assert.Nil(t, job, "jittered job must not be due immediately")
}

func TestDispatcher_RetryThenGiveUp(t *testing.T) {
	df := newDispatcherFixture(DispatcherOptions{MaxAttempts: 2, RetryDelay: 15 * time.Minute, DefaultMaxPages: 1})
	df.fetcher.errs[1] = &repository.ProviderError{Provider: "fake", StatusCode: 500, Message: "boom"}
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	df.d.baseCtx = context.Background()
	df.d.now = func() time.Time { return now }
	ctx := context.Background()

	df.d.process(&entity.AnalysisJob{ID: "job-1", Request: campaignRequest()})

	job, err := df.queue.PopDue(ctx, now.Add(15*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, now.Add(15*time.Minute), job.NotBefore)
	assert.Contains(t, job.LastError, "boom")

	df.d.process(job)
	n, err := df.queue.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, df.logs.FilterMessage("Analysis failed permanently").All(), 1)
}

func TestDispatcher_InvalidJobNotRetried(t *testing.T) {
	df := newDispatcherFixture(DispatcherOptions{MaxAttempts: 5})
	df.d.baseCtx = context.Background()

	df.d.process(&entity.AnalysisJob{ID: "job-2", Request: entity.AnalysisRequest{Kind: entity.KindCampaign, Websites: []string{"a.com"}}})
	n, err := df.queue.Size(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_WorkersProcessDueJobs(t *testing.T) {
	df := newDispatcherFixture(DispatcherOptions{Workers: 2, PollInterval: 10 * time.Millisecond, JobTimeout: time.Minute, DefaultMaxPages: 1})
	df.fetcher.pages[1] = fullPage(1, map[int]string{1: "https://a.com/", 2: "https://b.com/"})

	df.d.Start()
	_, err := df.d.Submit(context.Background(), campaignRequest(), time.Time{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(df.results.Rows()) == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	df.d.Stop(ctx)
	assert.Equal(t, []int{1}, df.fetcher.Calls())
}
