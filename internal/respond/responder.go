package respond

import (
	"fmt"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/metrics"
)

// Responder promotes malicious verdicts into alerts and fans them out to
// subscribers such as the dashboard broadcast.
type Responder struct {
	tracker  *Tracker
	counters *metrics.Wrapper
	notify   func(Alert)
}

// NewResponder wires the tracker to the metrics counters. counters and notify
// may both be nil.
func NewResponder(tracker *Tracker, counters *metrics.Wrapper, notify func(Alert)) *Responder {
	return &Responder{tracker: tracker, counters: counters, notify: notify}
}

// Tracker exposes the underlying alert state for the API layer.
func (r *Responder) Tracker() *Tracker {
	return r.tracker
}

// HandleVerdict raises an alert for a flow classified as malicious. Benign
// verdicts pass through untouched. Returns whether an alert was raised.
func (r *Responder) HandleVerdict(flow features.FlowRecord, predicted int) bool {
	if predicted != 1 {
		return false
	}

	reason := fmt.Sprintf("flow classified as malicious (%s -> %s:%d)",
		flow.SrcAddr, flow.DstAddr, flow.DstPort)
	alert, raised := r.tracker.Raise(flow.SrcAddr, flow.DstAddr, flow.DstPort, flow.Protocol, reason)
	if !raised {
		if r.counters != nil {
			r.counters.AlertsThrottled().Inc()
		}
		return false
	}

	if r.counters != nil {
		r.counters.AlertsRaised().Inc()
	}
	if r.notify != nil {
		r.notify(alert)
	}
	return true
}
