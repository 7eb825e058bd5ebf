// Package metrics exposes Prometheus collectors for the API and the forecast
// digest on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goatfarm-breeding-forecast/internal/breeding"
)

const namespace = "goatfarm"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	births   *prometheus.GaugeVec
	runs     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		births: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_births",
			Help:      "Births per farm from the latest forecast, by bucket.",
		}, []string{"owner", "bucket"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digest_runs_total",
			Help:      "Scheduled digest runs by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.births,
		m.runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveForecast publishes the counts of fc for owner.
func (m *Metrics) ObserveForecast(owner string, fc breeding.Forecast) {
	m.births.WithLabelValues(owner, "total").Set(float64(fc.TotalCount))
	m.births.WithLabelValues(owner, "due_soon").Set(float64(fc.DueSoonCount))
	m.births.WithLabelValues(owner, "overdue").Set(float64(fc.OverdueCount))
	m.births.WithLabelValues(owner, "listed").Set(float64(len(fc.Entries)))
}

// DigestRun counts one digest run; ok selects the success or error outcome.
func (m *Metrics) DigestRun(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
