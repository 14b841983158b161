package chromedp_crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/serp-tracker/internal/entity"
	"github.com/user/serp-tracker/pkg/utils"
)

const (
	maxOrganicHits  = 100
	maxFallbackHits = 50
)

// ExtractHits parses a result page into ranked hits. Organic entries are anchors holding an h3
// inside div.g or div.yuRUbf blocks. When none are found, every external link is taken instead.
func ExtractHits(htmlContent string) ([]entity.SearchHit, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	hits := organicHits(doc)
	if len(hits) == 0 {
		hits = fallbackHits(doc)
	}
	return hits, nil
}

func organicHits(doc *goquery.Document) []entity.SearchHit {
	var hits []entity.SearchHit
	doc.Find("div.g a, div.yuRUbf a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		h3 := s.Find("h3").First()
		if h3.Length() == 0 {
			return true
		}
		href := resolveHref(s.AttrOr("href", ""))
		title := strings.TrimSpace(h3.Text())
		if href == "" || title == "" {
			return true
		}

		snippet := strings.TrimSpace(s.Closest("div.g").Find("div.VwiC3b, span.aCOpRe").First().Text())
		hits = append(hits, entity.NewSearchHit(len(hits)+1, title, href, snippet))
		return len(hits) < maxOrganicHits
	})
	return hits
}

func fallbackHits(doc *goquery.Document) []entity.SearchHit {
	var hits []entity.SearchHit
	doc.Find(`a[href^="http"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := s.AttrOr("href", "")
		text := strings.TrimSpace(s.Text())
		if text == "" || isSearchEngineLink(href) {
			return true
		}
		hits = append(hits, entity.NewSearchHit(len(hits)+1, text, href, ""))
		return len(hits) < maxFallbackHits
	})
	return hits
}

// resolveHref unwraps /url?q= redirect links and drops anything that is not absolute http(s).
func resolveHref(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	if isSearchEngineLink(href) {
		return ""
	}
	return href
}

func isSearchEngineLink(href string) bool {
	d := utils.ExtractDomain(href)
	return d == "" || d == "google.com" || strings.HasSuffix(d, ".google.com") || strings.HasPrefix(d, "google.")
}
