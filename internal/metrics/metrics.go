// Package metrics exposes Prometheus counters for check-ins, imports,
// storage retries and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/gatecheck/internal/application"
	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

// Compile-time interface satisfaction check.
var _ application.Observer = (*Metrics)(nil)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	checkInsTotal       *prometheus.CounterVec
	importRowsTotal     *prometheus.CounterVec
	storageRetriesTotal *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		checkInsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatecheck_checkins_total",
				Help: "Check-in attempts by source and outcome status",
			},
			[]string{"source", "status"},
		),

		importRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatecheck_import_rows_total",
				Help: "Imported and rejected rows across all bulk imports",
			},
			[]string{"result"}, // imported or rejected
		),

		storageRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatecheck_storage_retries_total",
				Help: "Storage calls retried after the store was unavailable",
			},
			[]string{"op"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_server_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_server_requests_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.checkInsTotal,
		m.importRowsTotal,
		m.storageRetriesTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// CheckIn counts one check-in outcome.
func (m *Metrics) CheckIn(source model.CheckInSource, status model.CheckInStatus) {
	m.checkInsTotal.WithLabelValues(string(source), string(status)).Inc()
}

// Import counts the rows of one finished or aborted import.
func (m *Metrics) Import(imported, rejected int) {
	m.importRowsTotal.WithLabelValues("imported").Add(float64(imported))
	m.importRowsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// StorageRetry counts one retried storage call.
func (m *Metrics) StorageRetry(op string) {
	m.storageRetriesTotal.WithLabelValues(op).Inc()
}

// ObserveHTTP records one served request. route is the ServeMux pattern,
// never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
