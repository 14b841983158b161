package entity

import (
	"time"

	"github.com/user/serp-tracker/pkg/utils"
)

// SeoResult mirrors the `seo_results` PostgreSQL table schema.
type SeoResult struct {
	ID           int64
	QueryID      string
	Query        string
	Location     string
	Website      string
	Domain       string
	Found        bool
	Position     *int
	URLFound     *string
	Title        string
	Snippet      string
	Page         int
	Method       Method
	PagesScanned int
	QuotaShare   float64
	AnalyzedAt   time.Time
}

// SeoResultsFromCampaign flattens a campaign result into one row per original website.
// The quota spent is shared evenly between the rows.
func SeoResultsFromCampaign(queryID string, res *CampaignAnalysisResult) []*SeoResult {
	total := len(res.Found) + len(res.NotFound)
	if total == 0 {
		return nil
	}
	share := float64(res.QuotaConsumed) / float64(total)

	rows := make([]*SeoResult, 0, total)
	for _, f := range res.FoundWebsites() {
		pos, u := f.Position, f.URL
		rows = append(rows, &SeoResult{
			QueryID:      queryID,
			Query:        res.Query,
			Location:     res.Location,
			Website:      f.Website,
			Domain:       f.Domain,
			Found:        true,
			Position:     &pos,
			URLFound:     &u,
			Title:        f.Title,
			Snippet:      f.Snippet,
			Page:         f.Page,
			Method:       MethodCampaign,
			PagesScanned: res.PagesScanned,
			QuotaShare:   share,
			AnalyzedAt:   res.AnalyzedAt,
		})
	}
	for _, w := range res.NotFound {
		rows = append(rows, &SeoResult{
			QueryID:      queryID,
			Query:        res.Query,
			Location:     res.Location,
			Website:      w,
			Domain:       utils.ExtractDomain(w),
			Method:       MethodCampaign,
			PagesScanned: res.PagesScanned,
			QuotaShare:   share,
			AnalyzedAt:   res.AnalyzedAt,
		})
	}
	return rows
}

// SeoResultFromSingleSite converts a single-site outcome into a row.
func SeoResultFromSingleSite(queryID, location string, res *SingleSiteResult) *SeoResult {
	row := &SeoResult{
		QueryID:    queryID,
		Query:      res.Query,
		Location:   location,
		Website:    res.Website,
		Domain:     utils.ExtractDomain(res.Website),
		Found:      res.Found,
		Position:   res.Position,
		URLFound:   res.URLFound,
		Method:     res.Method,
		QuotaShare: float64(res.QuotaConsumed),
		AnalyzedAt: res.AnalyzedAt,
	}
	if res.TitleFound != nil {
		row.Title = *res.TitleFound
	}
	return row
}
