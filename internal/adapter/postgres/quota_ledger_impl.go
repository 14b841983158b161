package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/user/serp-tracker/internal/repository"
)

// QuotaLedgerImpl provides a concrete implementation for the QuotaLedger interface using
// a row-level upsert, so concurrent increments serialize on the day's row.
type QuotaLedgerImpl struct {
	db DB
}

// NewQuotaLedger creates a new instance of QuotaLedgerImpl.
func NewQuotaLedger(db DB) *QuotaLedgerImpl {
	return &QuotaLedgerImpl{db: db}
}

// Consumed returns the day's counter, 0 when no row exists yet.
func (r *QuotaLedgerImpl) Consumed(ctx context.Context, day string) (int64, error) {
	var consumed int64
	err := r.db.QueryRow(ctx, `SELECT consumed FROM serp_quota_days WHERE day = $1::date;`, day).Scan(&consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, repository.Infrastructure("postgres", "quota select", err)
	}
	return consumed, nil
}

// Increment adds n to the day's row, creating it on first use.
func (r *QuotaLedgerImpl) Increment(ctx context.Context, day string, n int64) error {
	if n <= 0 {
		return nil
	}
	query := `
		INSERT INTO serp_quota_days (day, consumed, updated_at)
		VALUES ($1::date, $2, NOW())
		ON CONFLICT (day) DO UPDATE SET
			consumed = serp_quota_days.consumed + EXCLUDED.consumed,
			updated_at = NOW();
	`
	_, err := r.db.Exec(ctx, query, day, n)
	return repository.Infrastructure("postgres", "quota upsert", err)
}

// DeleteBefore removes day rows older than day and returns how many were removed.
func (r *QuotaLedgerImpl) DeleteBefore(ctx context.Context, day string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM serp_quota_days WHERE day < $1::date;`, day)
	if err != nil {
		return 0, repository.Infrastructure("postgres", "quota prune", err)
	}
	return tag.RowsAffected(), nil
}
