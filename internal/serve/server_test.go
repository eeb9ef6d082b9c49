package serve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/gbt"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/model"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/respond"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/stream"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	learner, err := boost.New(boost.Config{
		NEstimators:    5,
		LearningRate:   0.3,
		MaxDepth:       2,
		MinWindowSize:  4,
		MaxWindowSize:  8,
		UpdateStrategy: "replace",
	}, gbt.NewEngine(), nil)
	require.NoError(t, err)

	extractor := features.NewExtractor(features.ExtractorConfig{})
	return NewService(learner, extractor, opts)
}

func newTestServer(t *testing.T, key, secret string, opts Options) *Server {
	t.Helper()
	return NewServer(newTestService(t, opts), ":0", key, secret)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// trainingSet is linearly separable on the first feature.
func trainingSet(n int) ([][]float64, []int) {
	rows := make([][]float64, 0, n)
	labels := make([]int, 0, n)
	for i := 0; i < n; i++ {
		x := float64(i%8) / 8.0
		label := 0
		if x >= 0.5 {
			label = 1
		}
		rows = append(rows, []float64{x, 1 - x})
		labels = append(labels, label)
	}
	return rows, labels
}

func TestHandlePredict_UntrainedReturnsBenign(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/predict", predictRequest{
		Features: [][]float64{{0.1, 0.9}, {0.9, 0.1}},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int{0, 0}, resp.Predictions)
}

func TestLearnThenPredict(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})
	rows, labels := trainingSet(64)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/learn", learnRequest{
		Features: rows, Labels: labels,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/predict", predictRequest{
		Features: [][]float64{{0.05, 0.95}, {0.95, 0.05}},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int{0, 1}, resp.Predictions)
}

func TestHandlePredict_BadRequests(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/predict", predictRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/predict", predictRequest{
		Features: [][]float64{{0.1, 0.9}, {0.1}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "features")
}

func TestHandlePredictProba_NotImplemented(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/predict/proba", predictRequest{
		Features: [][]float64{{0.1, 0.9}},
	}, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, rec.Body.String(), "not supported")
}

func TestHandleLearn_LengthMismatch(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/learn", learnRequest{
		Features: [][]float64{{0.1, 0.9}},
		Labels:   []int{0, 1},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, "api-key", "api-secret", Options{})
	body := learnRequest{Features: [][]float64{{0.1, 0.9}}, Labels: []int{0}}

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/learn", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing headers")

	nonce := "test-nonce"
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/learn", body, map[string]string{
		"X-Api-Key":   "api-key",
		"X-Nonce":     nonce,
		"X-Timestamp": ts,
		"X-Signature": "bogus",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "bad signature")

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/learn", body, map[string]string{
		"X-Api-Key":   "api-key",
		"X-Nonce":     nonce,
		"X-Timestamp": ts,
		"X-Signature": stream.Sign("api-secret", nonce, "api-key", ts),
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Read-only endpoints stay open.
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/status", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})
	rows, labels := trainingSet(16)
	require.Equal(t, http.StatusOK, doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/learn", learnRequest{
		Features: rows, Labels: labels,
	}, nil).Code)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "replace", report.Learner.Strategy)
	assert.NotZero(t, report.Learner.Trainings)
	assert.NotZero(t, report.Learner.SamplesSeen)
}

func TestHandleModelInfo(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/model/info", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "replace", info["strategy"])
	assert.Equal(t, float64(5), info["capacity"])
	names, ok := info["feature_names"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, names)
}

func TestHandleImportance(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})
	rows, labels := trainingSet(32)
	require.Equal(t, http.StatusOK, doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/learn", learnRequest{
		Features: rows, Labels: labels,
	}, nil).Code)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/model/importance", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var imp []gbt.FeatureImportance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imp))
	require.NotEmpty(t, imp)
	assert.Equal(t, 0, imp[0].Feature, "split signal lives in feature 0")
}

func TestHandleSnapshot(t *testing.T) {
	mgr, err := model.NewManager(t.TempDir(), 3)
	require.NoError(t, err)
	srv := newTestServer(t, "", "", Options{Snapshots: mgr})

	rows, labels := trainingSet(16)
	require.Equal(t, http.StatusOK, doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/learn", learnRequest{
		Features: rows, Labels: labels,
	}, nil).Code)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/model/snapshot", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap, err := mgr.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.NotEmpty(t, snap.Trees)
}

func TestHandleSnapshot_NotConfigured(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/model/snapshot", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAlertEndpoints(t *testing.T) {
	tracker := respond.NewTracker(time.Hour, 0)
	t.Cleanup(tracker.Stop)
	responder := respond.NewResponder(tracker, nil, nil)
	srv := newTestServer(t, "", "", Options{Responder: responder})

	flow := features.FlowRecord{SrcAddr: "10.0.0.5", DstAddr: "192.168.1.20", DstPort: 22, Protocol: "tcp"}
	responder.HandleVerdict(flow, 1)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/alerts", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []respond.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)

	rec = doJSON(t, srv.Handler(), http.MethodPost, fmt.Sprintf("/api/v1/alerts/%s/ack", alerts[0].ID), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/alerts/not-an-id/ack", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertEndpoints_NotConfigured(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/alerts", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, "", "", Options{})
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":true`)
}

func TestHandleFlow_Pipeline(t *testing.T) {
	tracker := respond.NewTracker(time.Hour, 0)
	t.Cleanup(tracker.Stop)
	responder := respond.NewResponder(tracker, nil, nil)
	service := newTestService(t, Options{Responder: responder})

	// Unlabeled flow: predicted benign by the empty ensemble, no alert.
	flow := features.FlowRecord{
		Timestamp: time.Now(), SrcAddr: "10.0.0.5", DstAddr: "192.168.1.20",
		DstPort: 443, Protocol: "tcp", BytesIn: 1024, BytesOut: 256,
		PktsIn: 4, PktsOut: 3, SynCount: 1, AckCount: 3,
		Label: features.UnlabeledFlow,
	}
	predicted, err := service.HandleFlow(flow)
	require.NoError(t, err)
	assert.Equal(t, 0, predicted)
	assert.Empty(t, tracker.Active())

	// Labeled flows feed the learner.
	for i := 0; i < 10; i++ {
		labeled := flow
		labeled.Label = i % 2
		labeled.DstPort = 1000 + i
		_, err := service.HandleFlow(labeled)
		require.NoError(t, err)
	}
	status := service.Status()
	assert.NotZero(t, status.Learner.Trainings, "window fills and trains")
}
