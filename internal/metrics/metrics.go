// Package metrics records one rip run for Prometheus. A run is a short-lived
// process, so the usual export is a node_exporter textfile written at exit;
// the serve command exposes the same registry over HTTP.
//
// All methods are no-ops on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "smotreshka_ripper"

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	channels        prometheus.Gauge
	programs        prometheus.Gauge
	streams         prometheus.Gauge
	enrichFailures  *prometheus.CounterVec
	streamFallbacks prometheus.Counter
	runDuration     prometheus.Gauge
	lastSuccess     prometheus.Gauge
	served          *prometheus.CounterVec
}

// New builds a fresh registry with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Provider API requests by endpoint and outcome (ok, status, timeout, connection, error).",
		}, []string{"endpoint", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Provider API request latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint"}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels",
			Help:      "Purchased channels collected in the last run.",
		}),
		programs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "programs",
			Help:      "EPG programs collected in the last run.",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_with_stream",
			Help:      "Channels with a selected stream URL in the last run.",
		}),
		enrichFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Channels left partially populated, by phase (epg, stream).",
		}, []string{"phase"}),
		streamFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rendition_fallbacks_total",
			Help:      "Channels whose stream URL fell back to the first rendition.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "served_total",
			Help:      "Artifacts served over HTTP by path and status code.",
		}, []string{"path", "code"}),
	}
	m.registry.MustRegister(
		m.requests, m.requestDuration,
		m.channels, m.programs, m.streams,
		m.enrichFailures, m.streamFallbacks,
		m.runDuration, m.lastSuccess, m.served,
	)
	return m
}

// WithProcessCollectors adds Go runtime and process collectors; used by the
// long-running serve command only.
func (m *Metrics) WithProcessCollectors() *Metrics {
	if m == nil {
		return m
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for HTTP handlers and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) SetCollected(channels, programs, withStream int) {
	if m == nil {
		return
	}
	m.channels.Set(float64(channels))
	m.programs.Set(float64(programs))
	m.streams.Set(float64(withStream))
}

func (m *Metrics) EnrichmentFailed(phase string) {
	if m == nil {
		return
	}
	m.enrichFailures.WithLabelValues(phase).Inc()
}

func (m *Metrics) RenditionFallback() {
	if m == nil {
		return
	}
	m.streamFallbacks.Inc()
}

// RunFinished records the run duration and, on success, the completion time.
func (m *Metrics) RunFinished(start time.Time, ok bool) {
	if m == nil {
		return
	}
	now := time.Now()
	m.runDuration.Set(now.Sub(start).Seconds())
	if ok {
		m.lastSuccess.Set(float64(now.Unix()))
	}
}

func (m *Metrics) Served(path string, code int) {
	if m == nil {
		return
	}
	m.served.WithLabelValues(path, statusLabel(code)).Inc()
}

// WriteTextfile atomically writes the registry in the text exposition format
// for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
