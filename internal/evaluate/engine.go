package evaluate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"
)

// CurvePoint records cumulative accuracy after a number of flows, sampled at
// a fixed interval so long runs stay plottable.
type CurvePoint struct {
	Flows    int     `json:"flows"`
	Accuracy float64 `json:"accuracy"`
}

// Result holds the outcome of one prequential run.
type Result struct {
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Flows          int `json:"flows"`
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`

	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Kappa     float64 `json:"kappa"`

	LearnerStatus boost.Status `json:"learner_status"`
	Curve         []CurvePoint `json:"curve,omitempty"`
}

// record updates the confusion matrix with one verdict.
func (r *Result) record(predicted, label int) {
	r.Flows++
	switch {
	case predicted == 1 && label == 1:
		r.TruePositives++
	case predicted == 1 && label == 0:
		r.FalsePositives++
	case predicted == 0 && label == 0:
		r.TrueNegatives++
	default:
		r.FalseNegatives++
	}
}

// finalize derives the summary metrics from the confusion matrix.
func (r *Result) finalize() {
	n := float64(r.Flows)
	if n == 0 {
		return
	}
	tp, fp := float64(r.TruePositives), float64(r.FalsePositives)
	tn, fn := float64(r.TrueNegatives), float64(r.FalseNegatives)

	r.Accuracy = (tp + tn) / n
	if tp+fp > 0 {
		r.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		r.Recall = tp / (tp + fn)
	}
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}

	// Cohen's kappa: agreement above what the class marginals would
	// produce by chance. 1.0 is perfect, 0.0 is chance level.
	pe := ((tp+fp)*(tp+fn) + (fn+tn)*(fp+tn)) / (n * n)
	if pe < 1 {
		r.Kappa = (r.Accuracy - pe) / (1 - pe)
	}
}

// interim returns the running accuracy without finalizing.
func (r *Result) interim() float64 {
	if r.Flows == 0 {
		return 0
	}
	return float64(r.TruePositives+r.TrueNegatives) / float64(r.Flows)
}

// Engine drives a prequential run: each labeled flow is scored with the
// current model, the verdict is recorded, and only then does the model train
// on it.
type Engine struct {
	loader    *Loader
	learner   *boost.Classifier
	extractor *features.Extractor
	name      string

	// curveInterval controls accuracy-curve sampling; <= 0 disables the
	// curve entirely.
	curveInterval int
}

// NewEngine builds an evaluation engine over a loaded dataset.
func NewEngine(loader *Loader, learner *boost.Classifier, extractor *features.Extractor, name string) *Engine {
	return &Engine{
		loader:        loader,
		learner:       learner,
		extractor:     extractor,
		name:          name,
		curveInterval: 100,
	}
}

// SetCurveInterval overrides how often the accuracy curve is sampled.
func (e *Engine) SetCurveInterval(interval int) {
	e.curveInterval = interval
}

// Run replays the dataset through the learner. The context is checked
// between flows so long replays can be cancelled.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.loader.Count() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	result := &Result{
		RunID:     uuid.New().String(),
		Name:      e.name,
		StartedAt: time.Now(),
	}

	log.Info().
		Str("run_id", result.RunID).
		Str("name", e.name).
		Int("flows", e.loader.Count()).
		Msg("starting prequential evaluation")

	e.loader.Reset()
	for e.loader.HasNext() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		flow := e.loader.Next()
		vector := e.extractor.Observe(flow)

		predicted := e.learner.Predict([][]float64{vector})[0]
		result.record(predicted, flow.Label)

		if err := e.learner.Learn(vector, flow.Label); err != nil {
			return nil, fmt.Errorf("training on flow %d: %w", result.Flows, err)
		}

		if e.curveInterval > 0 && result.Flows%e.curveInterval == 0 {
			result.Curve = append(result.Curve, CurvePoint{
				Flows:    result.Flows,
				Accuracy: result.interim(),
			})
		}
	}

	result.FinishedAt = time.Now()
	result.LearnerStatus = e.learner.Status()
	result.finalize()

	log.Info().
		Str("run_id", result.RunID).
		Float64("accuracy", result.Accuracy).
		Float64("f1", result.F1).
		Uint64("trainings", result.LearnerStatus.Trainings).
		Uint64("drift_resets", result.LearnerStatus.DriftResets).
		Msg("evaluation finished")
	return result, nil
}
