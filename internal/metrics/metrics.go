// Package metrics provides Prometheus metrics collection for the intrusion
// detection pipeline. It defines and manages the ingest, learning, and
// alerting metrics exposed via the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the detection pipeline.
type Metrics struct {
	// Ingest metrics
	FlowsIngested  prometheus.Counter // Total flows received from the sensor feed
	FlowsDropped   prometheus.Counter // Flows dropped because the pipeline was saturated
	ParseErrors    prometheus.Counter // Sensor messages that failed to parse
	SensorRestarts prometheus.Counter // Total sensor stream reconnections

	// Learner metrics
	PredictionsTotal prometheus.Counter   // Total prediction calls served
	TrainingsTotal   prometheus.Counter   // Ensemble training rounds completed
	DriftResets      prometheus.Counter   // Window resets triggered by drift detection
	WindowSize       prometheus.Gauge     // Current adaptive window size
	EnsembleSize     prometheus.Gauge     // Live ensemble members
	TrackedSources   prometheus.Gauge     // Source addresses with behavioral state
	PredictLatency   prometheus.Histogram // Prediction latency in seconds
	TrainLatency     prometheus.Histogram // Training round latency in seconds

	// Alerting metrics
	AlertsRaised    prometheus.Counter // Alerts promoted from malicious verdicts
	AlertsThrottled prometheus.Counter // Verdicts suppressed by the per-source cooldown

	// System metrics
	ErrorsTotal prometheus.Counter // Total errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		FlowsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "flows_ingested_total",
			Help: "Total flows received from the sensor feed",
		}),
		FlowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "flows_dropped_total",
			Help: "Flows dropped because the pipeline was saturated",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "parse_errors_total",
			Help: "Sensor messages that failed to parse",
		}),
		SensorRestarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "sensor_restarts_total",
			Help: "Total sensor stream reconnections",
		}),
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total prediction calls served",
		}),
		TrainingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "trainings_total",
			Help: "Ensemble training rounds completed",
		}),
		DriftResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "drift_resets_total",
			Help: "Window resets triggered by drift detection",
		}),
		WindowSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "window_size",
			Help: "Current adaptive window size",
		}),
		EnsembleSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ensemble_size",
			Help: "Live ensemble members",
		}),
		TrackedSources: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracked_sources",
			Help: "Source addresses with behavioral state",
		}),
		PredictLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "predict_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		TrainLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "train_latency_seconds",
			Help:    "Training round latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		AlertsRaised: factory.NewCounter(prometheus.CounterOpts{
			Name: "alerts_raised_total",
			Help: "Alerts promoted from malicious verdicts",
		}),
		AlertsThrottled: factory.NewCounter(prometheus.CounterOpts{
			Name: "alerts_throttled_total",
			Help: "Verdicts suppressed by the per-source cooldown",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total errors encountered",
		}),
	}
}

// ObserveLearner pushes the learner's current shape onto the gauges.
func (m *Metrics) ObserveLearner(windowSize, ensembleSize int) {
	m.WindowSize.Set(float64(windowSize))
	m.EnsembleSize.Set(float64(ensembleSize))
}
