package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the repositories need.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// NewPool connects to PostgreSQL and verifies the connection.
func NewPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS seo_results (
	id              BIGSERIAL PRIMARY KEY,
	query_id        TEXT NOT NULL DEFAULT '',
	query_used      TEXT NOT NULL,
	location        TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL,
	domain          TEXT NOT NULL DEFAULT '',
	found           BOOLEAN NOT NULL DEFAULT FALSE,
	position        INTEGER,
	url_found       TEXT,
	title           TEXT NOT NULL DEFAULT '',
	snippet         TEXT NOT NULL DEFAULT '',
	page            INTEGER NOT NULL DEFAULT 0,
	method          TEXT NOT NULL,
	pages_scanned   INTEGER NOT NULL DEFAULT 0,
	quota_share     DOUBLE PRECISION NOT NULL DEFAULT 0,
	analyzed_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS seo_results_website_query_idx ON seo_results (website, query_used, analyzed_at DESC);

CREATE TABLE IF NOT EXISTS serp_quota_days (
	day        DATE PRIMARY KEY,
	consumed   BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the tables the repositories write to.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
