package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the song service. They live on
// their own registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	RatingsCreated    prometheus.Counter
	SeedSongsImported prometheus.Counter
	SeedLinesSkipped  prometheus.Counter
	RateLimited       prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "song_service_http_requests_total",
			Help: "The total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "song_service_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RatingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "song_service_ratings_created_total",
			Help: "The total number of ratings stored",
		}),
		SeedSongsImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "song_service_seed_songs_imported_total",
			Help: "The number of songs imported from the seed file",
		}),
		SeedLinesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "song_service_seed_lines_skipped_total",
			Help: "The number of malformed seed lines that were skipped",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "song_service_rate_limited_total",
			Help: "The number of requests rejected by the rate limiter",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
