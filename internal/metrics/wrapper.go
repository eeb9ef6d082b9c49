package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
	Add(float64)
}

type Histogram interface {
	Observe(float64)
}

// Wrapper exposes the subset of metrics the ingest and alerting packages
// need behind small interfaces, keeping them decoupled from the prometheus
// client types.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) FlowsIngested() Counter   { return counterWrapper{w.m.FlowsIngested} }
func (w *Wrapper) FlowsDropped() Counter    { return counterWrapper{w.m.FlowsDropped} }
func (w *Wrapper) ParseErrors() Counter     { return counterWrapper{w.m.ParseErrors} }
func (w *Wrapper) SensorRestarts() Counter  { return counterWrapper{w.m.SensorRestarts} }
func (w *Wrapper) AlertsRaised() Counter    { return counterWrapper{w.m.AlertsRaised} }
func (w *Wrapper) AlertsThrottled() Counter { return counterWrapper{w.m.AlertsThrottled} }

func (w *Wrapper) TrackedSources() Gauge { return gaugeWrapper{w.m.TrackedSources} }

func (w *Wrapper) PredictLatency() Histogram { return histogramWrapper{w.m.PredictLatency} }

type counterWrapper struct {
	c prometheus.Counter
}

func (cw counterWrapper) Inc() {
	cw.c.Inc()
}

type gaugeWrapper struct {
	g prometheus.Gauge
}

func (gw gaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw gaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type histogramWrapper struct {
	h prometheus.Histogram
}

func (hw histogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
