package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/openvdb"
)

// Compile-time check to ensure Metrics can be passed to openvdb.Open.
var _ openvdb.MetricsCollector = (*Metrics)(nil)

// Metrics exposes database and HTTP metrics to Prometheus. It implements
// openvdb.MetricsCollector.
type Metrics struct {
	// Registry is the Prometheus registry every metric is registered with.
	Registry *prometheus.Registry

	opLatency       *prometheus.HistogramVec
	upsertedTotal   prometheus.Counter
	rejectedTotal   prometheus.Counter
	walAppends      *prometheus.CounterVec
	snapshots       *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a dedicated registry. Go runtime
// and process collectors are included.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "openvdb_operation_latency_seconds",
			Help:    "Latency of database operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		upsertedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openvdb_vectors_upserted_total",
			Help: "Total vectors stored by upserts",
		}),
		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openvdb_vectors_rejected_total",
			Help: "Total vectors submitted but not stored",
		}),
		walAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openvdb_wal_appends_total",
			Help: "Total WAL appends",
		}, []string{"status"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openvdb_snapshots_total",
			Help: "Total snapshots",
		}, []string{"status"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openvdb_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "openvdb_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	registry.MustRegister(
		m.opLatency,
		m.upsertedTotal,
		m.rejectedTotal,
		m.walAppends,
		m.snapshots,
		m.requestsTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordUpsert implements openvdb.MetricsCollector.
func (m *Metrics) RecordUpsert(count, applied int, duration time.Duration) {
	st := "success"
	if applied < count {
		st = "error"
	}
	m.opLatency.WithLabelValues("upsert", st).Observe(duration.Seconds())
	m.upsertedTotal.Add(float64(applied))
	m.rejectedTotal.Add(float64(count - applied))
}

// RecordQuery implements openvdb.MetricsCollector.
func (m *Metrics) RecordQuery(_ int, duration time.Duration, err error) {
	m.opLatency.WithLabelValues("query", status(err)).Observe(duration.Seconds())
}

// RecordDelete implements openvdb.MetricsCollector.
func (m *Metrics) RecordDelete(duration time.Duration, err error) {
	m.opLatency.WithLabelValues("delete", status(err)).Observe(duration.Seconds())
}

// RecordWALAppend implements openvdb.MetricsCollector.
func (m *Metrics) RecordWALAppend(duration time.Duration, err error) {
	m.opLatency.WithLabelValues("wal_append", status(err)).Observe(duration.Seconds())
	m.walAppends.WithLabelValues(status(err)).Inc()
}

// RecordSnapshot implements openvdb.MetricsCollector.
func (m *Metrics) RecordSnapshot(duration time.Duration, err error) {
	m.opLatency.WithLabelValues("snapshot", status(err)).Observe(duration.Seconds())
	m.snapshots.WithLabelValues(status(err)).Inc()
}

// recordRequest records an HTTP request against its route pattern.
func (m *Metrics) recordRequest(route string, code int, start time.Time) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
