package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/metrics"
)

const (
	ledgerWriteTries   = 3
	ledgerWriteTimeout = 5 * time.Second
)

// QuotaAccountant applies the ledger policy shared by all resolvers: reads fail open,
// writes are retried and, when the store stays down, buffered until the next write succeeds.
type QuotaAccountant struct {
	ledger     repository.QuotaLedger
	dailyLimit int64
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	// admitMu serializes Reserve so two callers cannot both take the last unit.
	admitMu  sync.Mutex
	mu       sync.Mutex
	pending  map[string]int64 // day -> unwritten units
	reserved int64            // units admitted but not yet committed or released
}

// NewQuotaAccountant creates a new QuotaAccountant.
func NewQuotaAccountant(ledger repository.QuotaLedger, dailyLimit int64, m *metrics.Metrics, logger *zap.Logger) *QuotaAccountant {
	return &QuotaAccountant{
		ledger:     ledger,
		dailyLimit: dailyLimit,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		pending:    make(map[string]int64),
	}
}

// DailyLimit returns the configured cap.
func (q *QuotaAccountant) DailyLimit() int64 { return q.dailyLimit }

// Status reports the day's usage. A store failure marks the snapshot degraded instead of failing.
func (q *QuotaAccountant) Status(ctx context.Context, now time.Time) entity.QuotaStatus {
	day := entity.QuotaDay(now)
	pending := q.pendingFor(day)

	st := entity.QuotaStatus{Date: day, DailyLimit: q.dailyLimit, Pending: pending}
	consumed, err := q.ledger.Consumed(ctx, day)
	if err != nil {
		q.logger.Warn("Quota ledger unreadable, reporting local usage only", zap.String("day", day), zap.Error(err))
		st.Degraded = true
	}
	st.UsedToday = consumed + pending
	st.Remaining = entity.Remaining(st.UsedToday, q.dailyLimit)
	return st
}

// Remaining returns the units left today.
func (q *QuotaAccountant) Remaining(ctx context.Context) int64 {
	return q.Status(ctx, q.now()).Remaining
}

// Reserve admits one page fetch if today's usage, counting units still reserved by other
// callers of this process, leaves room. Every successful Reserve must be followed by Commit
// or Release. An unreadable ledger admits against local usage only.
func (q *QuotaAccountant) Reserve(ctx context.Context) bool {
	q.admitMu.Lock()
	defer q.admitMu.Unlock()

	day := entity.QuotaDay(q.now())
	// Snapshot local usage before reading the store: a flush in between double counts, never misses.
	q.mu.Lock()
	local := q.pending[day] + q.reserved
	q.mu.Unlock()

	consumed, err := q.ledger.Consumed(ctx, day)
	if err != nil {
		q.logger.Warn("Quota ledger unreadable, admitting against local usage", zap.String("day", day), zap.Error(err))
		consumed = 0
	}
	if entity.Remaining(consumed+local, q.dailyLimit) <= 0 {
		return false
	}

	q.mu.Lock()
	q.reserved++
	q.mu.Unlock()
	return true
}

// Commit turns a reservation into one spent unit.
func (q *QuotaAccountant) Commit(ctx context.Context) {
	q.record(ctx, 1, 1)
}

// Release returns a reservation whose fetch made no billable request.
func (q *QuotaAccountant) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reserved > 0 {
		q.reserved--
	}
}

// Reserved returns the units admitted but not yet committed or released.
func (q *QuotaAccountant) Reserved() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reserved
}

// Record adds n spent units to today's counter. It never fails: units that cannot be written
// are kept in memory and written together with the next successful Record or Flush.
func (q *QuotaAccountant) Record(ctx context.Context, n int64) {
	q.record(ctx, n, 0)
}

// record moves n units to pending and drops settled reservations in one step, so Reserve
// never sees a unit in neither place.
func (q *QuotaAccountant) record(ctx context.Context, n, settled int64) {
	if n <= 0 {
		return
	}
	q.metrics.QuotaConsumedTotal.Add(float64(n))

	day := entity.QuotaDay(q.now())
	q.mu.Lock()
	q.pending[day] += n
	q.reserved -= settled
	if q.reserved < 0 {
		q.reserved = 0
	}
	q.mu.Unlock()

	if err := q.Flush(ctx); err != nil {
		q.logger.Error("Quota increment buffered, ledger unavailable",
			zap.String("day", day),
			zap.Int64("pending", q.pendingFor(day)),
			zap.Error(err),
		)
	}
}

// Flush writes every buffered day to the ledger. Spent quota outlives the caller's deadline,
// so writes run detached from ctx cancellation.
func (q *QuotaAccountant) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()

	batch := q.takePending()
	for day, n := range batch {
		if err := q.write(ctx, day, n); err != nil {
			q.restore(batch)
			return err
		}
		delete(batch, day)
	}
	return nil
}

func (q *QuotaAccountant) restore(batch map[string]int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for day, n := range batch {
		q.pending[day] += n
	}
}

// Pending returns all buffered units.
func (q *QuotaAccountant) Pending() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var total int64
	for _, n := range q.pending {
		total += n
	}
	return total
}

func (q *QuotaAccountant) write(ctx context.Context, day string, n int64) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, q.ledger.Increment(ctx, day, n)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(ledgerWriteTries))
	return err
}

func (q *QuotaAccountant) takePending() map[string]int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = make(map[string]int64)
	return out
}

func (q *QuotaAccountant) pendingFor(day string) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending[day]
}
