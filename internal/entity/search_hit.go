package entity

import "github.com/user/serp-tracker/pkg/utils"

// SearchHit is one organic result entry.
type SearchHit struct {
	Rank    int    `json:"rank"` // 1-based across the whole result set, not the page
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
}

// NewSearchHit builds a hit and derives its domain from rawURL.
func NewSearchHit(rank int, title, rawURL, snippet string) SearchHit {
	return SearchHit{
		Rank:    rank,
		Title:   title,
		URL:     rawURL,
		Snippet: snippet,
		Domain:  utils.ExtractDomain(rawURL),
	}
}
