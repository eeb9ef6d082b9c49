package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/gbt"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/respond"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/serve"
)

func newTestDashboard(t *testing.T) (*Dashboard, *respond.Responder) {
	t.Helper()

	learner, err := boost.New(boost.Config{
		NEstimators:    3,
		LearningRate:   0.3,
		MaxDepth:       2,
		MinWindowSize:  4,
		MaxWindowSize:  8,
		UpdateStrategy: "push",
	}, gbt.NewEngine(), nil)
	require.NoError(t, err)

	tracker := respond.NewTracker(time.Hour, time.Minute)
	t.Cleanup(tracker.Stop)
	responder := respond.NewResponder(tracker, nil, nil)

	service := serve.NewService(learner, features.NewExtractor(features.ExtractorConfig{}), serve.Options{
		Responder: responder,
	})
	return New(service, 0), responder
}

func TestCollect(t *testing.T) {
	d, responder := newTestDashboard(t)

	snap := d.collect()
	assert.Equal(t, "push", snap.Status.Learner.Strategy)
	assert.Empty(t, snap.Alerts)

	responder.Tracker().Raise("10.0.0.5", "192.168.1.50", 22, "tcp", "test alert")

	snap = d.collect()
	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, "10.0.0.5", snap.Alerts[0].Source)
	assert.Equal(t, 1, snap.AlertCounts[respond.AlertStatusActive])
}

func TestSnapshotAPI(t *testing.T) {
	d, _ := newTestDashboard(t)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	rec := httptest.NewRecorder()
	d.handleSnapshotAPI(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "push", snap.Status.Learner.Strategy)
}

func TestDashboardPage(t *testing.T) {
	d, _ := newTestDashboard(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	d.handleDashboard(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Network Intrusion Detection Dashboard")
	assert.Contains(t, body, "/ws")
}

func TestWebSocketInitialSnapshot(t *testing.T) {
	d, _ := newTestDashboard(t)

	server := httptest.NewServer(http.HandlerFunc(d.handleWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "push", snap.Status.Learner.Strategy)
}
