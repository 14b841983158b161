package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/internal/repository"
)

// SeoResultRepoImpl provides a concrete implementation for the SeoResultRepository interface using PostgreSQL.
type SeoResultRepoImpl struct {
	db DB
}

// NewSeoResultRepo creates a new instance of SeoResultRepoImpl.
func NewSeoResultRepo(db DB) *SeoResultRepoImpl {
	return &SeoResultRepoImpl{db: db}
}

const insertSeoResult = `
	INSERT INTO seo_results (query_id, query_used, location, website, domain, found, position, url_found, title, snippet, page, method, pages_scanned, quota_share, analyzed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id;
`

// SaveAll inserts every row within a single transaction and fills in their IDs.
func (r *SeoResultRepoImpl) SaveAll(ctx context.Context, rows []*entity.SeoResult) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return repository.Infrastructure("postgres", "begin", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		err := tx.QueryRow(ctx, insertSeoResult,
			row.QueryID,
			row.Query,
			row.Location,
			row.Website,
			row.Domain,
			row.Found,
			row.Position,
			row.URLFound,
			row.Title,
			row.Snippet,
			row.Page,
			string(row.Method),
			row.PagesScanned,
			row.QuotaShare,
			row.AnalyzedAt,
		).Scan(&row.ID)
		if err != nil {
			return repository.Infrastructure("postgres", "insert seo_result", err)
		}
	}

	return repository.Infrastructure("postgres", "commit", tx.Commit(ctx))
}

// LatestForWebsite retrieves the most recent row for website and query.
func (r *SeoResultRepoImpl) LatestForWebsite(ctx context.Context, query, website string) (*entity.SeoResult, error) {
	sql := `
		SELECT id, query_id, query_used, location, website, domain, found, position, url_found, title, snippet, page, method, pages_scanned, quota_share, analyzed_at
		FROM seo_results
		WHERE website = $1 AND query_used = $2
		ORDER BY analyzed_at DESC
		LIMIT 1;
	`
	var res entity.SeoResult
	var method string
	err := r.db.QueryRow(ctx, sql, website, query).Scan(
		&res.ID,
		&res.QueryID,
		&res.Query,
		&res.Location,
		&res.Website,
		&res.Domain,
		&res.Found,
		&res.Position,
		&res.URLFound,
		&res.Title,
		&res.Snippet,
		&res.Page,
		&method,
		&res.PagesScanned,
		&res.QuotaShare,
		&res.AnalyzedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.Infrastructure("postgres", "select seo_result", err)
	}
	res.Method = entity.Method(method)
	return &res, nil
}
