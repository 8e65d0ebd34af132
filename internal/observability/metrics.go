package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the batch pipeline.
type Metrics struct {
	registry *prometheus.Registry

	encodesTotal        *prometheus.CounterVec
	encodeDuration      prometheus.Histogram
	ingestRejectedTotal *prometheus.CounterVec
	recordsInflight     prometheus.Gauge
	archivesBuiltTotal  *prometheus.CounterVec
	bytesSavedTotal     prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		encodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "squeeze",
				Name:      "encodes_total",
				Help:      "Total number of compression attempts by result.",
			},
			[]string{"result"},
		),
		encodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "squeeze",
				Name:      "encode_duration_seconds",
				Help:      "Time spent decoding and re-encoding one image.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		ingestRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "squeeze",
				Name:      "ingest_rejections_total",
				Help:      "Total number of files rejected at ingestion by reason.",
			},
			[]string{"reason"},
		),
		recordsInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "squeeze",
				Name:      "records_inflight",
				Help:      "Current number of decode or encode tasks in flight.",
			},
		),
		archivesBuiltTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "squeeze",
				Name:      "archives_built_total",
				Help:      "Total number of archive builds by result.",
			},
			[]string{"result"},
		),
		bytesSavedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "squeeze",
				Name:      "bytes_saved_total",
				Help:      "Bytes saved by successful compressions, summed over every attempt.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.encodesTotal,
		m.encodeDuration,
		m.ingestRejectedTotal,
		m.recordsInflight,
		m.archivesBuiltTotal,
		m.bytesSavedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEncode records one finished compression.
func (m *Metrics) ObserveEncode(ok bool, duration time.Duration, savedBytes int64) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.encodesTotal.WithLabelValues(result).Inc()

	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.encodeDuration.Observe(seconds)

	if ok && savedBytes > 0 {
		m.bytesSavedTotal.Add(float64(savedBytes))
	}
}

func (m *Metrics) IncIngestRejected(reason string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(reason))
	if label == "" {
		label = "unknown"
	}
	m.ingestRejectedTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.recordsInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.recordsInflight.Dec()
}

func (m *Metrics) IncArchiveBuilt(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.archivesBuiltTotal.WithLabelValues(result).Inc()
}
