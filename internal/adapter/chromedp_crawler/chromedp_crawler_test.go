package chromedp_crawler

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/serp-tracker/internal/repository"
	"github.com/user/serp-tracker/pkg/metrics"
)

const resultPage = `<html><body>
<div id="search">
  <div class="g">
    <div class="yuRUbf"><a href="/url?q=https://www.pizzeria-mario.fr/&amp;sa=U"><h3>Pizzeria Mario Lyon</h3></a></div>
    <div class="VwiC3b">Wood-fired pizza in Lyon.</div>
  </div>
  <div class="g">
    <a href="https://maps.google.com/place"><h3>Maps</h3></a>
  </div>
  <div class="g">
    <a href="https://bella.com/menu"><h3> Bella </h3></a>
    <a href="https://bella.com/no-title">no heading</a>
  </div>
</div>
</body></html>`

const fallbackPage = `<html><body>
<a href="https://www.google.com/preferences">Settings</a>
<a href="https://a.com/">A site</a>
<a href="https://b.com/"></a>
<a href="/relative">Relative</a>
<a href="http://c.com/x">C site</a>
</body></html>`

func TestExtractHits_Organic(t *testing.T) {
	hits, err := ExtractHits(resultPage)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, "https://www.pizzeria-mario.fr/", hits[0].URL)
	assert.Equal(t, "pizzeria-mario.fr", hits[0].Domain)
	assert.Equal(t, "Pizzeria Mario Lyon", hits[0].Title)
	assert.Equal(t, "Wood-fired pizza in Lyon.", hits[0].Snippet)

	assert.Equal(t, 2, hits[1].Rank)
	assert.Equal(t, "bella.com", hits[1].Domain)
	assert.Equal(t, "Bella", hits[1].Title)
}

func TestExtractHits_Fallback(t *testing.T) {
	hits, err := ExtractHits(fallbackPage)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a.com", hits[0].Domain)
	assert.Equal(t, 2, hits[1].Rank)
	assert.Equal(t, "c.com", hits[1].Domain)
}

func TestExtractHits_Empty(t *testing.T) {
	hits, err := ExtractHits(`<html><body><p>captcha</p></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestResolveHref(t *testing.T) {
	assert.Equal(t, "https://x.com/a", resolveHref("/url?q=https://x.com/a&sa=U"))
	assert.Equal(t, "", resolveHref("/search?q=more"))
	assert.Equal(t, "", resolveHref("https://www.google.com/search"))
	assert.Equal(t, "http://y.org", resolveHref(" http://y.org "))
}

func TestScraper_Scrape(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	var gotURL string
	var gotID Identity
	s := newScraper(ScraperConfig{Language: "fr", Region: "fr"}, m, zap.NewNop(),
		func(_ context.Context, pageURL string, id Identity) (string, error) {
			gotURL, gotID = pageURL, id
			return resultPage, nil
		})

	hits, err := s.Scrape(context.Background(), "pizzeria", "Lyon")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	u, err := url.Parse(gotURL)
	require.NoError(t, err)
	assert.Equal(t, "pizzeria Lyon", u.Query().Get("q"))
	assert.Equal(t, "fr", u.Query().Get("hl"))
	assert.Equal(t, "100", u.Query().Get("num"))
	assert.NotEmpty(t, gotID.UserAgent)
	assert.NotEmpty(t, gotID.AcceptLanguage)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PageFetchesTotal.WithLabelValues("scraper", "success")))
}

func TestScraper_Failures(t *testing.T) {
	t.Run("render error is provider error", func(t *testing.T) {
		s := newScraper(ScraperConfig{}, metrics.Nop(), zap.NewNop(),
			func(context.Context, string, Identity) (string, error) { return "", errors.New("net::ERR_CONNECTION_RESET") })
		_, err := s.Scrape(context.Background(), "q", "")
		assert.ErrorIs(t, err, repository.ErrProvider)
	})

	t.Run("nothing extracted", func(t *testing.T) {
		s := newScraper(ScraperConfig{}, metrics.Nop(), zap.NewNop(),
			func(context.Context, string, Identity) (string, error) { return "<html></html>", nil })
		_, err := s.Scrape(context.Background(), "q", "")
		assert.ErrorIs(t, err, repository.ErrNoResults)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := newScraper(ScraperConfig{}, metrics.Nop(), zap.NewNop(),
			func(ctx context.Context, _ string, _ Identity) (string, error) { return "", ctx.Err() })
		_, err := s.Scrape(ctx, "q", "")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIdentityRotator(t *testing.T) {
	r := NewIdentityRotator()
	first := r.Next()
	seen := map[string]bool{first.UserAgent: true}
	for i := 1; i < len(r.userAgents); i++ {
		seen[r.Next().UserAgent] = true
	}
	assert.Len(t, seen, len(r.userAgents))
	assert.Equal(t, first.UserAgent, r.Next().UserAgent)
}
