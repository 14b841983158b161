package memory

import (
	"context"
	"sync"
)

// QuotaLedgerImpl is an in-process QuotaLedger for one-shot runs and tests.
// It is only shared between goroutines of one process.
type QuotaLedgerImpl struct {
	mu   sync.Mutex
	days map[string]int64
}

// NewQuotaLedger creates an empty ledger.
func NewQuotaLedger() *QuotaLedgerImpl {
	return &QuotaLedgerImpl{days: make(map[string]int64)}
}

// Consumed returns the count recorded for day.
func (l *QuotaLedgerImpl) Consumed(_ context.Context, day string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.days[day], nil
}

// Increment adds n to the day's counter.
func (l *QuotaLedgerImpl) Increment(_ context.Context, day string, n int64) error {
	if n <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.days[day] += n
	return nil
}
