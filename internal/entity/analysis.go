package entity

import (
	"sort"
	"time"
)

// Method identifies how a position was obtained.
type Method string

const (
	MethodCampaign        Method = "campaign_analysis"
	MethodAPI             Method = "api"
	MethodScrapeHeuristic Method = "scrape_heuristic"
	MethodSimulated       Method = "simulated"
)

// FoundWebsite is the first occurrence of a target in the result pages.
type FoundWebsite struct {
	Website  string `json:"website"`
	Domain   string `json:"domain"`
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Page     int    `json:"page"`
}

// CampaignAnalysisResult is the output of a campaign-wide resolution.
// Found keys and NotFound together cover every unique original website exactly once.
type CampaignAnalysisResult struct {
	Query         string                  `json:"query"`
	Location      string                  `json:"location,omitempty"`
	Found         map[string]FoundWebsite `json:"found"`
	NotFound      []string                `json:"not_found"`
	PagesScanned  int                     `json:"pages_scanned"`
	QuotaConsumed int                     `json:"quota_consumed"`
	AnalyzedAt    time.Time               `json:"analyzed_at"`
	FromCache     bool                    `json:"from_cache"`
}

// FoundWebsites returns Found sorted by position, then website.
func (r *CampaignAnalysisResult) FoundWebsites() []FoundWebsite {
	out := make([]FoundWebsite, 0, len(r.Found))
	for _, f := range r.Found {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Website < out[j].Website
	})
	return out
}

// SingleSiteResult is the output of a single-site resolution.
type SingleSiteResult struct {
	Website       string    `json:"website"`
	Query         string    `json:"query"`
	Found         bool      `json:"found"`
	Position      *int      `json:"position"`
	URLFound      *string   `json:"url_found"`
	TitleFound    *string   `json:"title_found"`
	Method        Method    `json:"method"`
	QuotaConsumed int       `json:"quota_consumed"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
}

// NotFoundResult is a negative single-site outcome for method.
func NotFoundResult(website, query string, method Method) *SingleSiteResult {
	return &SingleSiteResult{
		Website:    website,
		Query:      query,
		Method:     method,
		AnalyzedAt: time.Now().UTC(),
	}
}

// FoundResult is a positive single-site outcome built from a SERP hit.
func FoundResult(website, query string, method Method, hit SearchHit) *SingleSiteResult {
	pos, u, t := hit.Rank, hit.URL, hit.Title
	return &SingleSiteResult{
		Website:    website,
		Query:      query,
		Found:      true,
		Position:   &pos,
		URLFound:   &u,
		TitleFound: &t,
		Method:     method,
		AnalyzedAt: time.Now().UTC(),
	}
}
