// Package boost implements an online gradient-boosted-tree ensemble for
// streaming binary classification. Examples arrive one at a time and are
// buffered by an adaptive window; each full window trains one additive tree
// through a pluggable boosting engine, and trees enter a capacity-bounded
// ensemble under a push or replace update strategy. Margins stack additively
// in training order, and an optional drift monitor triggers window and
// cursor resets when the stream's error rate shifts.
//
// A Classifier instance is not safe for concurrent use. Embedding code that
// serves multiple goroutines must serialize calls externally; the HTTP
// service layer does exactly that.
package boost

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrProbaUnsupported is returned by PredictProba unconditionally. The
// ensemble collapses stacked margins to hard labels through the final
// member's sigmoid; per-class probabilities are out of scope, not missing.
var ErrProbaUnsupported = errors.New("probability prediction is not supported, use Predict")

// Config is the recognized learner configuration surface. Only
// UpdateStrategy is validated here; range checking of the numeric knobs
// belongs to the configuration layer.
type Config struct {
	// NEstimators fixes the ensemble capacity.
	NEstimators int
	// LearningRate and MaxDepth pass through to the boosting engine.
	LearningRate float64
	MaxDepth     int
	// MaxWindowSize bounds the training window. MinWindowSize is optional
	// (<= 0 means unset) and defaults to MaxWindowSize.
	MaxWindowSize int
	MinWindowSize int
	// DetectDrift enables the drift monitor and its reset policy.
	DetectDrift bool
	// UpdateStrategy is "push" or "replace"; anything else fails New.
	UpdateStrategy string
}

// Classifier is the online learner orchestrating window, ensemble, engine,
// and drift monitor.
type Classifier struct {
	cfg      Config
	strategy Strategy
	params   Params
	engine   Engine
	monitors MonitorFactory

	window      *Window
	ensemble    store
	monitor     DriftMonitor
	initialized bool
	nFeatures   int

	samplesSeen uint64
	trainings   uint64
	driftResets uint64
}

// New validates the update strategy, wires the collaborators, and returns a
// classifier ready to learn. monitors may be nil when drift detection is
// disabled.
func New(cfg Config, engine Engine, monitors MonitorFactory) (*Classifier, error) {
	strategy, err := ParseStrategy(cfg.UpdateStrategy)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, errors.New("boosting engine is required")
	}
	if cfg.DetectDrift && monitors == nil {
		return nil, errors.New("drift detection enabled but no monitor factory supplied")
	}

	c := &Classifier{
		cfg:      cfg,
		strategy: strategy,
		params:   Params{LearningRate: cfg.LearningRate, MaxDepth: cfg.MaxDepth},
		engine:   engine,
		monitors: monitors,
	}
	c.configure()
	return c, nil
}

// configure builds fresh window, ensemble, and monitor state. Shared by New
// and Reset.
func (c *Classifier) configure() {
	c.window = NewWindow(c.cfg.MinWindowSize, c.cfg.MaxWindowSize)
	c.ensemble = newStore(c.strategy, c.cfg.NEstimators)
	c.monitor = nil
	if c.cfg.DetectDrift {
		c.monitor = c.monitors()
	}
	c.initialized = false
	c.nFeatures = 0
	c.samplesSeen = 0
	c.trainings = 0
	c.driftResets = 0
}

// Reset discards all learned state: ensemble members, buffered examples,
// window sizing, drift monitor, and the locked feature dimensionality.
func (c *Classifier) Reset() {
	c.configure()
}

// Learn feeds one labeled example through the full accumulate/train/drift
// cycle. Engine failures propagate unretried.
func (c *Classifier) Learn(features []float64, label int) error {
	if !c.initialized {
		c.nFeatures = len(features)
		c.initialized = true
	} else if len(features) != c.nFeatures {
		return fmt.Errorf("feature dimension %d does not match locked dimension %d", len(features), c.nFeatures)
	}

	c.window.Accumulate(Example{Features: features, Label: label})

	for c.window.Ready() {
		batch := c.window.Drain()
		if err := c.trainOnBatch(batch); err != nil {
			return err
		}
		c.window.Grow()
	}

	if c.monitor != nil {
		c.reactToDrift(features, label)
	}
	return nil
}

// LearnBatch is a thin loop over Learn; windowing already batches, so the
// multi-example entry point adds no batching of its own.
func (c *Classifier) LearnBatch(features [][]float64, labels []int) error {
	if len(features) != len(labels) {
		return fmt.Errorf("got %d feature rows for %d labels", len(features), len(labels))
	}
	for i := range features {
		if err := c.Learn(features[i], labels[i]); err != nil {
			return err
		}
	}
	return nil
}

// trainOnBatch stacks margins across the current contributor set in training
// order, trains one tree against that base, and inserts it per the active
// strategy.
func (c *Classifier) trainOnBatch(batch []Example) error {
	features := make([][]float64, len(batch))
	labels := make([]float64, len(batch))
	for i, ex := range batch {
		features[i] = ex.Features
		labels[i] = float64(ex.Label)
	}

	base := stackMargins(c.ensemble.contributors(), features)
	tree, err := c.engine.TrainOneRound(features, labels, base, c.params)
	if err != nil {
		return fmt.Errorf("training round %d on batch of %d: %w", c.trainings+1, len(batch), err)
	}

	c.ensemble.insert(tree)
	c.samplesSeen += uint64(len(batch))
	c.trainings++

	log.Debug().
		Uint64("round", c.trainings).
		Int("batch", len(batch)).
		Int("window", c.window.Size()).
		Int("members", c.ensemble.count()).
		Msg("trained ensemble member")
	return nil
}

// reactToDrift scores the just-arrived example, feeds the 0/1 error
// indicator to the monitor, and on a reported change resets the window and
// rewinds the replace cursor. The monitor itself is never reset here; it
// carries its statistic across the whole run.
func (c *Classifier) reactToDrift(features []float64, label int) {
	predicted := c.Predict([][]float64{features})[0]
	bit := 0
	if predicted != label {
		bit = 1
	}
	c.monitor.Observe(bit)
	if !c.monitor.Changed() {
		return
	}

	c.window.Reset()
	c.ensemble.resetCursor()
	c.driftResets++
	log.Info().
		Uint64("reset", c.driftResets).
		Int("window", c.window.Size()).
		Str("strategy", c.strategy.String()).
		Msg("drift detected, window reset")
}

// stackMargins composes members left to right, each scoring with the running
// margin sum of all strictly earlier members as its base. Training and
// prediction both go through here so the two stackings cannot diverge.
func stackMargins(members []TreeModel, features [][]float64) []float64 {
	margins := make([]float64, len(features))
	for _, m := range members {
		margins = m.Score(features, margins, true)
	}
	return margins
}

// Predict returns the hard 0/1 label for every row. An empty ensemble
// predicts 0 for any batch shape: an untrained model never signals class 1.
func (c *Classifier) Predict(features [][]float64) []int {
	out := make([]int, len(features))
	members := c.ensemble.live()
	if len(members) == 0 {
		return out
	}

	margins := stackMargins(members[:len(members)-1], features)
	scores := members[len(members)-1].Score(features, margins, false)
	for i, s := range scores {
		if s > 0.5 {
			out[i] = 1
		}
	}
	return out
}

// PredictProba always fails with ErrProbaUnsupported.
func (c *Classifier) PredictProba(features [][]float64) ([][]float64, error) {
	return nil, ErrProbaUnsupported
}

// Restore seeds a fresh ensemble from previously trained members, in
// training order. Window sizing, counters, and the drift monitor start over;
// only the members and the locked feature dimensionality carry across.
func (c *Classifier) Restore(members []TreeModel, featureDim int) error {
	if len(members) > c.cfg.NEstimators {
		return fmt.Errorf("%d members exceed ensemble capacity %d", len(members), c.cfg.NEstimators)
	}
	c.configure()
	for _, m := range members {
		c.ensemble.insert(m)
	}
	if featureDim > 0 {
		c.nFeatures = featureDim
		c.initialized = true
	}
	return nil
}

// LiveMembers returns the current ensemble members in training order,
// oldest first. Used by snapshotting and importance reporting.
func (c *Classifier) LiveMembers() []TreeModel {
	return c.ensemble.live()
}

// Params returns the engine hyperparameters in use.
func (c *Classifier) Params() Params { return c.params }

// Status is a diagnostic snapshot of the learner.
type Status struct {
	Strategy       string `json:"strategy"`
	DriftDetection bool   `json:"drift_detection"`
	FeatureDim     int    `json:"feature_dim"`
	WindowSize     int    `json:"window_size"`
	Buffered       int    `json:"buffered"`
	EnsembleLive   int    `json:"ensemble_live"`
	Capacity       int    `json:"capacity"`
	SamplesSeen    uint64 `json:"samples_seen"`
	Trainings      uint64 `json:"trainings"`
	DriftResets    uint64 `json:"drift_resets"`
}

// Status reports the learner's current shape and counters. SamplesSeen
// counts examples consumed by training rounds and drives nothing.
func (c *Classifier) Status() Status {
	return Status{
		Strategy:       c.strategy.String(),
		DriftDetection: c.cfg.DetectDrift,
		FeatureDim:     c.nFeatures,
		WindowSize:     c.window.Size(),
		Buffered:       c.window.Buffered(),
		EnsembleLive:   c.ensemble.count(),
		Capacity:       c.ensemble.capacity(),
		SamplesSeen:    c.samplesSeen,
		Trainings:      c.trainings,
		DriftResets:    c.driftResets,
	}
}
