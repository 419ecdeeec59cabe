package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. It satisfies the
// command and query bus metric hooks and ports.BusinessMetrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	CommandDuration *prometheus.HistogramVec
	QueryDuration   *prometheus.HistogramVec

	Uploads      *prometheus.CounterVec
	UploadBytes  prometheus.Counter
	Saves        *prometheus.CounterVec
	SavedNodes   prometheus.Histogram
	Placements   *prometheus.CounterVec
	OpenSessions prometheus.Gauge
}

// NewMetrics registers every collector on a private registry
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command handling latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command", "status"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query handling latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query", "status"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blueprint_uploads_total",
			Help:      "Blueprint uploads by outcome",
		}, []string{"status"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blueprint_upload_bytes_total",
			Help:      "Bytes of accepted blueprint uploads",
		}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagram_saves_total",
			Help:      "Node list saves by outcome",
		}, []string{"status"}),
		SavedNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diagram_saved_nodes",
			Help:      "Nodes per successful save",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		Placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "symbol_placements_total",
			Help:      "Symbols placed on canvases",
		}, []string{"symbol"}),
		OpenSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editing_sessions",
			Help:      "Open editing sessions",
		}),
	}

	registry.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.CommandDuration, m.QueryDuration,
		m.Uploads, m.UploadBytes, m.Saves, m.SavedNodes, m.Placements, m.OpenSessions,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCommand records a command bus dispatch
func (m *Metrics) ObserveCommand(commandType string, d time.Duration, err error) {
	m.CommandDuration.WithLabelValues(commandType, status(err)).Observe(d.Seconds())
}

// ObserveQuery records a query bus dispatch
func (m *Metrics) ObserveQuery(queryType string, d time.Duration, err error) {
	m.QueryDuration.WithLabelValues(queryType, status(err)).Observe(d.Seconds())
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) RecordUpload(size int64, err error) {
	m.Uploads.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.UploadBytes.Add(float64(size))
	}
}

func (m *Metrics) RecordSave(nodeCount int, err error) {
	m.Saves.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.SavedNodes.Observe(float64(nodeCount))
	}
}

func (m *Metrics) RecordPlacement(symbolID string) {
	m.Placements.WithLabelValues(symbolID).Inc()
}

// SetSessions reports the number of open editing sessions
func (m *Metrics) SetSessions(n int) {
	m.OpenSessions.Set(float64(n))
}
