package serve

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/stream"
)

// Server exposes the detection service over HTTP.
type Server struct {
	service *Service
	key     string
	secret  string
	server  *http.Server
}

// NewServer builds the API server. key and secret guard the mutating
// endpoints; empty credentials disable the check.
func NewServer(service *Service, addr, key, secret string) *Server {
	s := &Server{service: service, key: key, secret: secret}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/predict/proba", s.handlePredictProba).Methods(http.MethodPost)
	api.HandleFunc("/learn", s.requireAuth(s.handleLearn)).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/model/info", s.handleModelInfo).Methods(http.MethodGet)
	api.HandleFunc("/model/importance", s.handleImportance).Methods(http.MethodGet)
	api.HandleFunc("/model/snapshot", s.requireAuth(s.handleSnapshot)).Methods(http.MethodPost)
	api.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}/ack", s.requireAuth(s.handleAcknowledge)).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requireAuth verifies the signed-header handshake on mutating endpoints.
// The signature covers nonce, timestamp, and API key with the shared secret,
// same construction as the sensor feed.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.key == "" {
			next(w, r)
			return
		}

		key := r.Header.Get("X-Api-Key")
		nonce := r.Header.Get("X-Nonce")
		ts := r.Header.Get("X-Timestamp")
		sig := r.Header.Get("X-Signature")
		if key == "" || nonce == "" || ts == "" || sig == "" {
			http.Error(w, "missing auth headers", http.StatusUnauthorized)
			return
		}

		want := stream.Sign(s.secret, nonce, key, ts)
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.key)) != 1 ||
			subtle.ConstantTimeCompare([]byte(sig), []byte(want)) != 1 {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type predictRequest struct {
	Features  [][]float64 `json:"features"`
	RequestID string      `json:"request_id,omitempty"`
}

type predictResponse struct {
	Predictions []int     `json:"predictions"`
	RequestID   string    `json:"request_id,omitempty"`
	LatencyMs   float64   `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Features) == 0 {
		http.Error(w, "features cannot be empty", http.StatusBadRequest)
		return
	}

	predictions, err := s.service.Predict(req.Features)
	if err != nil {
		http.Error(w, fmt.Sprintf("prediction failed: %v", err), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		Predictions: predictions,
		RequestID:   req.RequestID,
		LatencyMs:   float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:   time.Now(),
	})
}

// handlePredictProba always answers 501: the ensemble produces hard labels
// through the final member's sigmoid, not calibrated class probabilities.
func (s *Server) handlePredictProba(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	_, err := s.service.PredictProba(req.Features)
	if errors.Is(err, boost.ErrProbaUnsupported) {
		http.Error(w, err.Error(), http.StatusNotImplemented)
		return
	}
	http.Error(w, "unexpected prediction state", http.StatusInternalServerError)
}

type learnRequest struct {
	Features [][]float64 `json:"features"`
	Labels   []int       `json:"labels"`
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Features) == 0 {
		http.Error(w, "features cannot be empty", http.StatusBadRequest)
		return
	}

	if err := s.service.Learn(req.Features, req.Labels); err != nil {
		http.Error(w, fmt.Sprintf("learn failed: %v", err), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": len(req.Features),
		"learner":  s.service.Status().Learner,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	status := s.service.Status().Learner
	writeJSON(w, http.StatusOK, map[string]any{
		"strategy":        status.Strategy,
		"drift_detection": status.DriftDetection,
		"feature_dim":     status.FeatureDim,
		"capacity":        status.Capacity,
		"ensemble_live":   status.EnsembleLive,
		"trainings":       status.Trainings,
		"samples_seen":    status.SamplesSeen,
		"feature_names":   s.service.extractor.FeatureNames(),
	})
}

func (s *Server) handleImportance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Importance())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Snapshot()
	if err != nil {
		http.Error(w, fmt.Sprintf("snapshot failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    snap.Version,
		"trees":      len(snap.Trees),
		"created_at": snap.CreatedAt,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	responder := s.service.Responder()
	if responder == nil {
		http.Error(w, "alerting is not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, responder.Tracker().Active())
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	responder := s.service.Responder()
	if responder == nil {
		http.Error(w, "alerting is not configured", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]
	if err := responder.Tracker().Acknowledge(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"acknowledged": id})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"healthy": true,
		"uptime":  s.service.Status().UptimeSeconds,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
