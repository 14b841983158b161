package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PageFetchesTotal   *prometheus.CounterVec
	QuotaConsumedTotal prometheus.Counter
	CacheLookupsTotal  *prometheus.CounterVec
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec
	JobsInQueue        prometheus.Gauge
}

// New registers the metrics on reg. Pass prometheus.DefaultRegisterer in production
// and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		PageFetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serp_page_fetches_total",
				Help: "Total number of SERP page fetch attempts.",
			},
			[]string{"provider", "status"}, // status: success, failure
		),
		QuotaConsumedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "serp_quota_consumed_total",
				Help: "Search-API quota units consumed by this process.",
			},
		),
		CacheLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serp_cache_lookups_total",
				Help: "Result cache lookups.",
			},
			[]string{"scope", "result"}, // result: hit, miss, error
		),
		ResolutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serp_resolutions_total",
				Help: "Completed position resolutions.",
			},
			[]string{"kind", "method", "status"},
		),
		ResolutionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "serp_resolution_duration_seconds",
				Help:    "Duration of position resolutions.",
				Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"kind"},
		),
		JobsInQueue: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "serp_jobs_in_queue",
				Help: "Current number of analysis jobs waiting in the queue.",
			},
		),
	}
}

// Nop returns metrics registered on a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
