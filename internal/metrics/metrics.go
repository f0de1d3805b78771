// Package metrics wires the ambient Prometheus endpoint (AS4): per-endpoint
// request counts and latencies exposed via promhttp.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's request-path counters and histograms.
type Registry struct {
	Requests   *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	CatalogHit *prometheus.CounterVec
}

// New registers the service's metrics against a fresh prometheus
// registry and returns both.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectro",
			Name:      "requests_total",
			Help:      "Total requests handled, by endpoint.",
		}, []string{"endpoint"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectro",
			Name:      "errors_total",
			Help:      "Total request failures, by endpoint and error kind.",
		}, []string{"endpoint", "kind"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spectro",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency, by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		CatalogHit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectro",
			Name:      "catalog_queries_total",
			Help:      "Total external catalog queries issued.",
		}, []string{"context"}),
	}
	return r, reg
}

// Handler returns the /metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Observe records one request's outcome and latency.
func (r *Registry) Observe(endpoint string, start time.Time, errKind string) {
	r.Requests.WithLabelValues(endpoint).Inc()
	r.Duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if errKind != "" {
		r.Errors.WithLabelValues(endpoint, errKind).Inc()
	}
}
