package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/adapter/memory"
	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/metrics"
)

// fakeFetcher serves scripted pages. Pages not scripted come back empty.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[int][]entity.SearchHit
	errs  map[int]error
	calls []int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[int][]entity.SearchHit{}, errs: map[int]error{}}
}

func (f *fakeFetcher) FetchPage(_ context.Context, _, _ string, page, _ int) ([]entity.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, page)
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	return f.pages[page], nil
}

func (f *fakeFetcher) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

// fullPage returns ten hits for page with filler domains, replacing the given ranks with urls.
func fullPage(page int, at map[int]string) []entity.SearchHit {
	hits := make([]entity.SearchHit, 0, 10)
	for i := 0; i < 10; i++ {
		rank := (page-1)*10 + i + 1
		u, ok := at[rank]
		if !ok {
			u = fmt.Sprintf("https://filler-%d.net/", rank)
		}
		hits = append(hits, entity.NewSearchHit(rank, fmt.Sprintf("Result %d", rank), u, ""))
	}
	return hits
}

// flakyLedger wraps the in-memory ledger and can be taken down.
type flakyLedger struct {
	inner      *memory.QuotaLedgerImpl
	down       atomic.Bool
	increments atomic.Int32
}

func newFlakyLedger() *flakyLedger { return &flakyLedger{inner: memory.NewQuotaLedger()} }

var errStoreDown = repository.Infrastructure("test", "op", errors.New("connection refused"))

func (l *flakyLedger) Consumed(ctx context.Context, day string) (int64, error) {
	if l.down.Load() {
		return 0, errStoreDown
	}
	return l.inner.Consumed(ctx, day)
}

func (l *flakyLedger) Increment(ctx context.Context, day string, n int64) error {
	l.increments.Add(1)
	if l.down.Load() {
		return errStoreDown
	}
	return l.inner.Increment(ctx, day, n)
}

func (l *flakyLedger) today() int64 {
	n, _ := l.inner.Consumed(context.Background(), entity.QuotaDay(time.Now()))
	return n
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, any) (bool, error) { return false, errStoreDown }
func (brokenCache) Put(context.Context, string, any, time.Duration) error {
	return errStoreDown
}

type fakeScraper struct {
	hits []entity.SearchHit
	err  error
}

func (s fakeScraper) Scrape(context.Context, string, string) ([]entity.SearchHit, error) {
	return s.hits, s.err
}

type failingProvider struct {
	method entity.Method
	err    error
}

func (p failingProvider) Method() entity.Method { return p.method }
func (p failingProvider) Locate(context.Context, string, string, string) (*entity.SingleSiteResult, error) {
	return nil, p.err
}

type fakeResultRepo struct {
	mu     sync.Mutex
	rows   []*entity.SeoResult
	latest map[string]*entity.SeoResult
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{latest: map[string]*entity.SeoResult{}}
}

func (r *fakeResultRepo) SaveAll(_ context.Context, rows []*entity.SeoResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.rows = append(r.rows, row)
		r.latest[row.Query+"|"+row.Website] = row
	}
	return nil
}

func (r *fakeResultRepo) LatestForWebsite(_ context.Context, query, website string) (*entity.SeoResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[query+"|"+website], nil
}

func (r *fakeResultRepo) Rows() []*entity.SeoResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.SeoResult(nil), r.rows...)
}

type resolverFixture struct {
	fetcher  *fakeFetcher
	ledger   *flakyLedger
	quota    *QuotaAccountant
	resolver *CampaignResolver
}

func newResolverFixture(limit int64, cache repository.ResultCache) *resolverFixture {
	if cache == nil {
		cache = memory.NewResultCache()
	}
	m := metrics.Nop()
	fx := &resolverFixture{fetcher: newFakeFetcher(), ledger: newFlakyLedger()}
	fx.quota = NewQuotaAccountant(fx.ledger, limit, m, zap.NewNop())
	fx.resolver = NewCampaignResolver(fx.fetcher, cache, fx.quota, CampaignOptions{
		PageSize: 10,
		CacheTTL: 6 * time.Hour,
	}, m, zap.NewNop())
	return fx
}
