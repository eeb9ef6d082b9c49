package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	w := NewWrapper(m)

	if w == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if w.m != m {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestWrapper_CounterOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	w := NewWrapper(m)

	flows := w.FlowsIngested()
	if initial := testutil.ToFloat64(m.FlowsIngested); initial != 0 {
		t.Errorf("expected initial counter value 0, got %f", initial)
	}

	flows.Inc()
	flows.Inc()
	if value := testutil.ToFloat64(m.FlowsIngested); value != 2 {
		t.Errorf("expected counter value 2 after increments, got %f", value)
	}

	w.AlertsRaised().Inc()
	if value := testutil.ToFloat64(m.AlertsRaised); value != 1 {
		t.Errorf("expected 1 alert raised, got %f", value)
	}
	w.AlertsThrottled().Inc()
	if value := testutil.ToFloat64(m.AlertsThrottled); value != 1 {
		t.Errorf("expected 1 alert throttled, got %f", value)
	}
}

func TestWrapper_GaugeOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	w := NewWrapper(m)

	sources := w.TrackedSources()
	sources.Set(42)
	if value := testutil.ToFloat64(m.TrackedSources); value != 42 {
		t.Errorf("expected gauge value 42, got %f", value)
	}

	sources.Add(-2)
	if value := testutil.ToFloat64(m.TrackedSources); value != 40 {
		t.Errorf("expected gauge value 40 after add, got %f", value)
	}
}

func TestWrapper_HistogramOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	w := NewWrapper(m)

	latency := w.PredictLatency()
	for _, v := range []float64{0.001, 0.005, 0.01, 0.05} {
		latency.Observe(v)
	}
	// Observations land on the underlying histogram without panicking; exact
	// bucket contents are the prometheus client's business.
}

func TestObserveLearner(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)

	m.ObserveLearner(128, 7)
	if value := testutil.ToFloat64(m.WindowSize); value != 128 {
		t.Errorf("expected window size gauge 128, got %f", value)
	}
	if value := testutil.ToFloat64(m.EnsembleSize); value != 7 {
		t.Errorf("expected ensemble size gauge 7, got %f", value)
	}
}

func TestWrapper_ConcurrentAccess(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	w := NewWrapper(m)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				w.FlowsIngested().Inc()
				w.PredictLatency().Observe(0.01)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if value := testutil.ToFloat64(m.FlowsIngested); value != 1000 {
		t.Errorf("expected 1000 flows after concurrent access, got %f", value)
	}
}

func BenchmarkWrapper_FlowsIngestedInc(b *testing.B) {
	registry := prometheus.NewRegistry()
	w := NewWrapper(NewWithRegistry(registry))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.FlowsIngested().Inc()
	}
}
