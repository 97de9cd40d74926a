// Package metrics holds the engine's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components take one optionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rise-and-shine/recoengine/cache"
)

const namespace = "recoengine"

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeSkipped  = "skipped"
	OutcomeConflict = "conflict"
	OutcomeRollback = "rollback"
)

// Metrics groups every collector the engine reports.
type Metrics struct {
	registry *prometheus.Registry

	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	StepDuration     *prometheus.HistogramVec
	StepTotal        *prometheus.CounterVec
	Selections       *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	UowOutcomes      *prometheus.CounterVec
	Recommendations  *prometheus.HistogramVec
	IngestMessages   *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and process
// collectors, on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Dispatched commands and queries by request type and outcome.",
		}, []string{"request_type", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Handler latency by request type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"request_type"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Pipeline step latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline", "step"}),
		StepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_step_total",
			Help:      "Pipeline step executions by outcome.",
		}, []string{"pipeline", "step", "outcome"}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_selections_total",
			Help:      "Strategy selections by strategy and reason.",
		}, []string{"strategy", "reason"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published after commit.",
		}, []string{"event_type", "outcome"}),
		UowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_of_work_total",
			Help:      "Unit of work completions by outcome.",
		}, []string{"outcome"}),
		Recommendations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendations_served",
			Help:      "Size of served recommendation lists.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"strategy", "context"}),
		IngestMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "Consumed interaction messages by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.DispatchTotal,
		m.DispatchDuration,
		m.StepDuration,
		m.StepTotal,
		m.Selections,
		m.EventsPublished,
		m.UowOutcomes,
		m.Recommendations,
		m.IngestMessages,
	)

	return m
}

// Registry returns the registry to expose over HTTP.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Metrics) ObserveDispatch(requestType string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(requestType, outcome(ok)).Inc()
	m.DispatchDuration.WithLabelValues(requestType).Observe(d.Seconds())
}

func (m *Metrics) ObserveStep(pipeline, step, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepTotal.WithLabelValues(pipeline, step, result).Inc()
	if result != OutcomeSkipped {
		m.StepDuration.WithLabelValues(pipeline, step).Observe(d.Seconds())
	}
}

func (m *Metrics) IncSelection(strategy, reason string) {
	if m == nil {
		return
	}
	m.Selections.WithLabelValues(strategy, reason).Inc()
}

func (m *Metrics) IncEvent(eventType string, ok bool) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType, outcome(ok)).Inc()
}

func (m *Metrics) IncUnitOfWork(result string) {
	if m == nil {
		return
	}
	m.UowOutcomes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveServed(strategy, context string, n int) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(strategy, context).Observe(float64(n))
}

func (m *Metrics) IncIngest(result string) {
	if m == nil {
		return
	}
	m.IngestMessages.WithLabelValues(result).Inc()
}

// RegisterCache exposes the counters of c as cache_* metrics labelled by cache name.
func (m *Metrics) RegisterCache(c cache.Cache) {
	if m == nil || c == nil {
		return
	}
	m.registry.MustRegister(newCacheCollector(c))
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
