// Package serve owns the detection pipeline and its HTTP API. The online
// classifier is not safe for concurrent use, so a single mutex serializes
// every learner touch: the ingest path, the API handlers, and snapshotting
// all go through Service.
package serve

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/gbt"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/metrics"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/model"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/respond"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/storage"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/stream"
)

// Service coordinates the learner, feature extractor, storage, alerting, and
// snapshotting behind one lock.
type Service struct {
	mu        sync.Mutex
	learner   *boost.Classifier
	extractor *features.Extractor
	store     *storage.Store
	m         *metrics.Metrics
	responder *respond.Responder
	snapshots *model.Manager
	ingest    func() stream.StatsSnapshot

	startedAt     time.Time
	lastTrainings uint64
	lastResets    uint64
}

// Options carries the optional collaborators. Store, metrics, responder,
// snapshots, and ingest stats may each be nil; the pipeline degrades to
// classify-only behavior without them.
type Options struct {
	Store     *storage.Store
	Metrics   *metrics.Metrics
	Responder *respond.Responder
	Snapshots *model.Manager
	Ingest    func() stream.StatsSnapshot
}

// NewService wires the pipeline around a learner and extractor.
func NewService(learner *boost.Classifier, extractor *features.Extractor, opts Options) *Service {
	return &Service{
		learner:   learner,
		extractor: extractor,
		store:     opts.Store,
		m:         opts.Metrics,
		responder: opts.Responder,
		snapshots: opts.Snapshots,
		ingest:    opts.Ingest,
		startedAt: time.Now(),
	}
}

// HandleFlow runs one flow through the full pipeline: feature extraction,
// prediction, optional training when ground truth is attached, persistence,
// and alerting. Returns the verdict.
func (s *Service) HandleFlow(flow features.FlowRecord) (int, error) {
	s.mu.Lock()
	vector := s.extractor.Observe(flow)

	start := time.Now()
	predicted := s.learner.Predict([][]float64{vector})[0]
	if s.m != nil {
		s.m.PredictionsTotal.Inc()
		s.m.PredictLatency.Observe(time.Since(start).Seconds())
	}

	var learnErr error
	if flow.Labeled() {
		trainStart := time.Now()
		learnErr = s.learner.Learn(vector, flow.Label)
		if learnErr == nil {
			s.noteTrainingProgress(time.Since(trainStart))
		}
	}
	status := s.learner.Status()
	s.mu.Unlock()

	if learnErr != nil {
		if s.m != nil {
			s.m.ErrorsTotal.Inc()
		}
		return predicted, fmt.Errorf("learn from flow: %w", learnErr)
	}

	if s.m != nil {
		s.m.ObserveLearner(status.WindowSize, status.EnsembleLive)
		s.m.TrackedSources.Set(float64(s.extractor.Sources()))
	}

	alerted := false
	if s.responder != nil {
		alerted = s.responder.HandleVerdict(flow, predicted)
	}

	if s.store != nil {
		if err := s.store.StoreFlow(flow); err != nil {
			log.Error().Err(err).Msg("failed to persist flow")
		}
		verdict := storage.VerdictRecord{
			Source:    flow.SrcAddr,
			Dest:      flow.DstAddr,
			DstPort:   flow.DstPort,
			Timestamp: flow.Timestamp,
			Predicted: predicted,
			Label:     flow.Label,
			Alerted:   alerted,
		}
		if err := s.store.StoreVerdict(verdict); err != nil {
			log.Error().Err(err).Msg("failed to persist verdict")
		}
	}

	return predicted, nil
}

// noteTrainingProgress advances the training counters by the delta since the
// last call. Caller holds the lock.
func (s *Service) noteTrainingProgress(elapsed time.Duration) {
	status := s.learner.Status()
	if s.m != nil {
		if status.Trainings > s.lastTrainings {
			s.m.TrainingsTotal.Add(float64(status.Trainings - s.lastTrainings))
			s.m.TrainLatency.Observe(elapsed.Seconds())
		}
		if status.DriftResets > s.lastResets {
			s.m.DriftResets.Add(float64(status.DriftResets - s.lastResets))
		}
	}

	if s.store != nil && status.Trainings > s.lastTrainings {
		record := storage.TrainingRecord{
			Round:      status.Trainings,
			Timestamp:  time.Now(),
			WindowSize: status.WindowSize,
			Members:    status.EnsembleLive,
			Strategy:   status.Strategy,
		}
		if err := s.store.StoreTraining(record); err != nil {
			log.Error().Err(err).Msg("failed to persist training record")
		}
	}

	s.lastTrainings = status.Trainings
	s.lastResets = status.DriftResets
}

// Predict scores raw feature vectors. Rejects ragged input.
func (s *Service) Predict(rows [][]float64) ([]int, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no feature rows supplied")
	}
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("row %d has %d features, row 0 has %d", i, len(row), len(rows[0]))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	out := s.learner.Predict(rows)
	if s.m != nil {
		s.m.PredictionsTotal.Add(float64(len(rows)))
		s.m.PredictLatency.Observe(time.Since(start).Seconds())
	}
	return out, nil
}

// PredictProba surfaces the learner's refusal unchanged.
func (s *Service) PredictProba(rows [][]float64) ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.learner.PredictProba(rows)
}

// Learn feeds labeled examples directly, bypassing feature extraction. Used
// by the API for replay and bootstrap traffic.
func (s *Service) Learn(rows [][]float64, labels []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.learner.LearnBatch(rows, labels); err != nil {
		if s.m != nil {
			s.m.ErrorsTotal.Inc()
		}
		return err
	}
	s.noteTrainingProgress(time.Since(start))

	status := s.learner.Status()
	if s.m != nil {
		s.m.ObserveLearner(status.WindowSize, status.EnsembleLive)
	}
	return nil
}

// Status assembles the full diagnostic view for the API and dashboard.
type StatusReport struct {
	UptimeSeconds float64               `json:"uptime_seconds"`
	Learner       boost.Status          `json:"learner"`
	Sources       int                   `json:"sources"`
	Ingest        *stream.StatsSnapshot `json:"ingest,omitempty"`
	ActiveAlerts  int                   `json:"active_alerts"`
}

func (s *Service) Status() StatusReport {
	s.mu.Lock()
	learner := s.learner.Status()
	s.mu.Unlock()

	report := StatusReport{
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Learner:       learner,
		Sources:       s.extractor.Sources(),
	}
	if s.ingest != nil {
		snap := s.ingest()
		report.Ingest = &snap
	}
	if s.responder != nil {
		report.ActiveAlerts = len(s.responder.Tracker().Active())
	}
	return report
}

// Importance aggregates split gains across the live ensemble.
func (s *Service) Importance() []gbt.FeatureImportance {
	s.mu.Lock()
	members := s.learner.LiveMembers()
	s.mu.Unlock()
	return gbt.Importance(members, s.extractor.FeatureNames())
}

// Snapshot persists the current ensemble through the snapshot manager.
func (s *Service) Snapshot() (model.Snapshot, error) {
	if s.snapshots == nil {
		return model.Snapshot{}, fmt.Errorf("snapshotting is not configured")
	}

	s.mu.Lock()
	members := s.learner.LiveMembers()
	status := s.learner.Status()
	s.mu.Unlock()

	return s.snapshots.Save(members, status, s.extractor.FeatureNames())
}

// Responder exposes the alert path for the HTTP layer; may be nil.
func (s *Service) Responder() *respond.Responder {
	return s.responder
}
