package respond

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestTracker(t *testing.T, ttl, cooldown time.Duration) *Tracker {
	t.Helper()
	tracker := NewTracker(ttl, cooldown)
	t.Cleanup(tracker.Stop)
	return tracker
}

func TestTracker_RaiseAndGet(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, 0)

	alert, raised := tracker.Raise("10.0.0.5", "192.168.1.20", 22, "tcp", "ssh brute force")
	require.True(t, raised)
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, AlertStatusActive, alert.Status)

	got, err := tracker.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", got.Source)
	assert.Equal(t, 22, got.DstPort)
}

func TestTracker_CooldownSuppression(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, time.Minute)

	_, raised := tracker.Raise("10.0.0.5", "192.168.1.20", 22, "tcp", "first")
	require.True(t, raised)

	_, raised = tracker.Raise("10.0.0.5", "192.168.1.21", 23, "tcp", "second")
	assert.False(t, raised, "same source inside cooldown must be suppressed")

	_, raised = tracker.Raise("10.0.0.6", "192.168.1.20", 22, "tcp", "other source")
	assert.True(t, raised, "cooldown is per source")
}

func TestTracker_Acknowledge(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, 0)

	alert, _ := tracker.Raise("10.0.0.5", "192.168.1.20", 443, "tcp", "exfil")
	require.NoError(t, tracker.Acknowledge(alert.ID))

	got, err := tracker.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, AlertStatusAcknowledged, got.Status)

	assert.Error(t, tracker.Acknowledge(alert.ID), "double acknowledge rejected")
	assert.Error(t, tracker.Acknowledge("no-such-id"))
	assert.Empty(t, tracker.Active())
}

func TestTracker_ActiveOrder(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, 0)

	first, _ := tracker.Raise("10.0.0.1", "d", 1, "tcp", "r")
	time.Sleep(2 * time.Millisecond)
	second, _ := tracker.Raise("10.0.0.2", "d", 2, "tcp", "r")

	active := tracker.Active()
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID, "newest first")
	assert.Equal(t, first.ID, active[1].ID)
}

func TestTracker_ExpireStale(t *testing.T) {
	tracker := newTestTracker(t, time.Minute, 0)

	alert, _ := tracker.Raise("10.0.0.1", "d", 1, "tcp", "r")

	tracker.expireStale(time.Now().Add(2 * time.Minute))
	got, err := tracker.Get(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, AlertStatusExpired, got.Status)

	// A second TTL past expiry evicts the record entirely.
	tracker.expireStale(time.Now().Add(5 * time.Minute))
	_, err = tracker.Get(alert.ID)
	assert.Error(t, err)

	counts := tracker.Count()
	assert.Zero(t, counts[AlertStatusActive])
	assert.Zero(t, counts[AlertStatusExpired])
}

func TestResponder_HandleVerdict(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)
	tracker := newTestTracker(t, time.Hour, time.Minute)

	var notified []Alert
	responder := NewResponder(tracker, metrics.NewWrapper(m), func(a Alert) {
		notified = append(notified, a)
	})

	flow := features.FlowRecord{
		SrcAddr: "10.0.0.5", DstAddr: "192.168.1.20", DstPort: 22, Protocol: "tcp",
	}

	assert.False(t, responder.HandleVerdict(flow, 0), "benign verdicts never alert")
	assert.True(t, responder.HandleVerdict(flow, 1))
	assert.False(t, responder.HandleVerdict(flow, 1), "cooldown throttles repeat alerts")

	require.Len(t, notified, 1)
	assert.Equal(t, "10.0.0.5", notified[0].Source)
	assert.Contains(t, notified[0].Reason, "classified as malicious")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsRaised))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsThrottled))
}

func TestResponder_NilCollaborators(t *testing.T) {
	tracker := newTestTracker(t, time.Hour, 0)
	responder := NewResponder(tracker, nil, nil)

	flow := features.FlowRecord{SrcAddr: "10.0.0.9", DstAddr: "d", DstPort: 1, Protocol: "udp"}
	assert.True(t, responder.HandleVerdict(flow, 1))
	assert.Len(t, tracker.Active(), 1)
}
