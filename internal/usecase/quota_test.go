package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/pkg/metrics"
)

func TestQuotaAccountant_RecordAndStatus(t *testing.T) {
	ledger := newFlakyLedger()
	m := metrics.New(prometheus.NewRegistry())
	q := NewQuotaAccountant(ledger, 100, m, zap.NewNop())
	ctx := context.Background()

	q.Record(ctx, 3)
	q.Record(ctx, 0)

	st := q.Status(ctx, time.Now())
	assert.Equal(t, entity.QuotaDay(time.Now()), st.Date)
	assert.Equal(t, int64(100), st.DailyLimit)
	assert.Equal(t, int64(3), st.UsedToday)
	assert.Equal(t, int64(97), st.Remaining)
	assert.False(t, st.Degraded)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.QuotaConsumedTotal))
}

func TestQuotaAccountant_ConcurrentRecords(t *testing.T) {
	ledger := newFlakyLedger()
	q := NewQuotaAccountant(ledger, 1000, metrics.Nop(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Record(context.Background(), 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), ledger.today())
}

func TestQuotaAccountant_BuffersWhileLedgerDown(t *testing.T) {
	ledger := newFlakyLedger()
	q := NewQuotaAccountant(ledger, 10, metrics.Nop(), zap.NewNop())
	ctx := context.Background()

	ledger.down.Store(true)
	q.Record(ctx, 2)
	assert.Equal(t, int64(2), q.Pending())
	assert.GreaterOrEqual(t, ledger.increments.Load(), int32(ledgerWriteTries))

	st := q.Status(ctx, time.Now())
	assert.True(t, st.Degraded)
	assert.Equal(t, int64(2), st.UsedToday)
	assert.Equal(t, int64(2), st.Pending)
	assert.Equal(t, int64(8), q.Remaining(ctx))

	ledger.down.Store(false)
	q.Record(ctx, 1)
	assert.Zero(t, q.Pending())
	assert.Equal(t, int64(3), ledger.today())
}

func TestQuotaAccountant_RecordSurvivesCanceledContext(t *testing.T) {
	ledger := newFlakyLedger()
	q := NewQuotaAccountant(ledger, 10, metrics.Nop(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Record(ctx, 1)
	assert.Equal(t, int64(1), ledger.today())
}

func TestQuotaAccountant_FlushAcrossDays(t *testing.T) {
	ledger := newFlakyLedger()
	q := NewQuotaAccountant(ledger, 10, metrics.Nop(), zap.NewNop())
	yesterday := time.Now().Add(-24 * time.Hour)
	q.now = func() time.Time { return yesterday }
	ctx := context.Background()

	ledger.down.Store(true)
	q.Record(ctx, 4)
	q.now = time.Now
	ledger.down.Store(false)
	require.NoError(t, q.Flush(ctx))

	got, err := ledger.Consumed(ctx, entity.QuotaDay(yesterday))
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
	assert.Zero(t, ledger.today())
}

func TestQuotaAccountant_ReserveNeverOversells(t *testing.T) {
	ledger := newFlakyLedger()
	q := NewQuotaAccountant(ledger, 5, metrics.Nop(), zap.NewNop())
	ctx := context.Background()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Reserve(ctx) {
				admitted.Add(1)
				q.Commit(ctx)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), admitted.Load())
	assert.Equal(t, int64(5), ledger.today())
	assert.Zero(t, q.Reserved())
	assert.False(t, q.Reserve(ctx))
}

func TestQuotaAccountant_ReservationsCountBeforeCommit(t *testing.T) {
	q := NewQuotaAccountant(newFlakyLedger(), 2, metrics.Nop(), zap.NewNop())
	ctx := context.Background()

	require.True(t, q.Reserve(ctx))
	require.True(t, q.Reserve(ctx))
	assert.False(t, q.Reserve(ctx), "two units in flight fill a limit of two")
	assert.Equal(t, int64(2), q.Reserved())

	q.Release()
	assert.True(t, q.Reserve(ctx), "a released unit can be admitted again")
}

func TestQuotaAccountant_ReserveWhileLedgerDown(t *testing.T) {
	ledger := newFlakyLedger()
	q := NewQuotaAccountant(ledger, 2, metrics.Nop(), zap.NewNop())
	ctx := context.Background()

	ledger.down.Store(true)
	require.True(t, q.Reserve(ctx))
	q.Commit(ctx)
	require.True(t, q.Reserve(ctx))
	q.Commit(ctx)
	assert.False(t, q.Reserve(ctx), "buffered units still count against the limit")
	assert.Equal(t, int64(2), q.Pending())
}
