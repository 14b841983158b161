package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestQuotaLedger_IncrementAndConsumed(t *testing.T) {
	mr, client := newTestClient(t)
	ledger := NewQuotaLedger(client)
	ctx := context.Background()

	got, err := ledger.Consumed(ctx, "2025-08-04")
	require.NoError(t, err)
	assert.Zero(t, got)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ledger.Increment(ctx, "2025-08-04", 3))
		}()
	}
	wg.Wait()
	require.NoError(t, ledger.Increment(ctx, "2025-08-04", 0))

	got, err = ledger.Consumed(ctx, "2025-08-04")
	require.NoError(t, err)
	assert.Equal(t, int64(60), got)
	assert.Equal(t, quotaKeyExpiry, mr.TTL("serp:quota:2025-08-04"))
}

func TestQuotaLedger_StoreDown(t *testing.T) {
	mr, client := newTestClient(t)
	ledger := NewQuotaLedger(client)
	mr.Close()

	_, err := ledger.Consumed(context.Background(), "2025-08-04")
	assert.True(t, errors.Is(err, repository.ErrInfrastructure))
	err = ledger.Increment(context.Background(), "2025-08-04", 1)
	assert.True(t, errors.Is(err, repository.ErrInfrastructure))
}

func TestResultCache_PutGet(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewResultCache(client)
	ctx := context.Background()

	in := entity.CampaignAnalysisResult{Query: "pizzeria lyon", PagesScanned: 2, QuotaConsumed: 2, NotFound: []string{"c.com"}}
	require.NoError(t, cache.Put(ctx, "abc", in, 6*time.Hour))
	assert.Equal(t, 6*time.Hour, mr.TTL("serp:cache:abc"))

	var out entity.CampaignAnalysisResult
	ok, err := cache.Get(ctx, "abc", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.Query, out.Query)
	assert.Equal(t, in.NotFound, out.NotFound)

	mr.FastForward(6 * time.Hour)
	ok, err = cache.Get(ctx, "abc", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultCache_CorruptEntry(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewResultCache(client)
	require.NoError(t, mr.Set("serp:cache:bad", "{not json"))

	var out entity.CampaignAnalysisResult
	ok, err := cache.Get(context.Background(), "bad", &out)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, repository.ErrInfrastructure))
}

func TestJobQueue_PopDue(t *testing.T) {
	_, client := newTestClient(t)
	queue := NewJobQueue(client)
	ctx := context.Background()
	base := time.Date(2025, 8, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, queue.Push(ctx, &entity.AnalysisJob{ID: "later", NotBefore: base.Add(time.Minute)}))
	require.NoError(t, queue.Push(ctx, &entity.AnalysisJob{
		ID:        "now",
		NotBefore: base,
		Request:   entity.AnalysisRequest{Kind: entity.KindCampaign, Query: "q", Websites: []string{"a.com"}},
	}))

	size, err := queue.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)

	job, err := queue.PopDue(ctx, base)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "now", job.ID)
	assert.Equal(t, []string{"a.com"}, job.Request.Websites)

	job, err = queue.PopDue(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Nil(t, job)

	job, err = queue.PopDue(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "later", job.ID)

	size, _ = queue.Size(ctx)
	assert.Zero(t, size)
}
