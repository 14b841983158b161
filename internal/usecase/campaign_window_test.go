package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/adapter/customsearch"
	"github.com/user/serp-tracker/internal/adapter/memory"
	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/pkg/metrics"
)

// newSearchAPI serves full pages of filler results for every start offset.
func newSearchAPI(t *testing.T, calls *atomic.Int32) *customsearch.FetcherImpl {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		num, _ := strconv.Atoi(r.URL.Query().Get("num"))
		items := make([]string, 0, num)
		for i := 0; i < num; i++ {
			items = append(items, fmt.Sprintf(`{"title":"R%d","link":"https://filler-%d.net/","snippet":""}`, start+i, start+i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
	}))
	t.Cleanup(srv.Close)

	f, err := customsearch.NewFetcher(context.Background(), customsearch.Config{
		APIKey:   "test-key",
		EngineID: "test-cx",
		Endpoint: srv.URL + "/",
		Timeout:  2 * time.Second,
	}, metrics.Nop(), zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestCampaignResolver_StopsAtResultWindow(t *testing.T) {
	var calls atomic.Int32
	ledger := newFlakyLedger()
	m := metrics.Nop()
	quota := NewQuotaAccountant(ledger, 100, m, zap.NewNop())
	r := NewCampaignResolver(newSearchAPI(t, &calls), memory.NewResultCache(), quota,
		CampaignOptions{PageSize: 10, CacheTTL: time.Hour}, m, zap.NewNop())

	res, err := r.Resolve(context.Background(), "q", []string{"target.com"}, "", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"target.com"}, res.NotFound)
	assert.Equal(t, int32(10), calls.Load())
	assert.Equal(t, 10, res.PagesScanned)
	assert.Equal(t, 10, res.QuotaConsumed)
	assert.Equal(t, int64(10), ledger.today())
}

func TestCampaignResolver_WindowFitsExactQuota(t *testing.T) {
	var calls atomic.Int32
	ledger := newFlakyLedger()
	m := metrics.Nop()
	quota := NewQuotaAccountant(ledger, 10, m, zap.NewNop())
	r := NewCampaignResolver(newSearchAPI(t, &calls), memory.NewResultCache(), quota,
		CampaignOptions{PageSize: 10, CacheTTL: time.Hour}, m, zap.NewNop())

	res, err := r.Resolve(context.Background(), "q", []string{"target.com"}, "", 20)
	require.NoError(t, err, "the last real page was fetched; nothing is left to admit")
	assert.Equal(t, 10, res.QuotaConsumed)

	st := quota.Status(context.Background(), time.Now())
	assert.Equal(t, entity.QuotaStatus{Date: st.Date, DailyLimit: 10, UsedToday: 10, Remaining: 0}, st)
}
