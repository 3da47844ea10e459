package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and histograms for the pipeline.
type Metrics struct {
	registry        *prometheus.Registry
	traversalsTotal *prometheus.CounterVec
	stageSeconds    *prometheus.HistogramVec
	incidentsTotal  prometheus.Counter
	unknownStages   prometheus.Counter
	droppedTotal    prometheus.Counter
}

// New creates and registers Prometheus metrics for the pipeline.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	traversalsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_traversals_total",
		Help: "Total number of messages handled, by stage tag",
	}, []string{"stage"})
	stageSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Capability invocation duration, by stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	incidentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_incidents_total",
		Help: "Total number of incidents persisted",
	})
	unknownStages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_unknown_stage_total",
		Help: "Total number of messages with an unrecognized stage tag",
	})
	droppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_dropped_traversals_total",
		Help: "Total number of traversals aborted by validation, capability failure or backpressure",
	})

	registry.MustRegister(
		traversalsTotal,
		stageSeconds,
		incidentsTotal,
		unknownStages,
		droppedTotal,
	)

	return &Metrics{
		registry:        registry,
		traversalsTotal: traversalsTotal,
		stageSeconds:    stageSeconds,
		incidentsTotal:  incidentsTotal,
		unknownStages:   unknownStages,
		droppedTotal:    droppedTotal,
	}
}

// IncTraversals increments the handled-message counter for a stage.
func (m *Metrics) IncTraversals(stage string) {
	m.traversalsTotal.WithLabelValues(stage).Inc()
}

// ObserveStage records a capability invocation duration for a stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// IncIncidents increments the persisted-incident counter.
func (m *Metrics) IncIncidents() {
	m.incidentsTotal.Inc()
}

// IncUnknownStage increments the unrecognized-stage counter.
func (m *Metrics) IncUnknownStage() {
	m.unknownStages.Inc()
}

// IncDropped increments the aborted-traversal counter.
func (m *Metrics) IncDropped() {
	m.droppedTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
