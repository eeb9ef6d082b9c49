package boost

// TreeModel is one trained boosted tree. Members are immutable once trained;
// the classifier composes them additively in training order.
//
// Score evaluates every row of features. baseMargin carries the accumulated
// log-odds of all strictly earlier ensemble members (nil means zero). With
// outputMargin true the result is baseMargin plus this tree's own additive
// contribution, still in log-odds space; with outputMargin false the sigmoid
// is applied to that sum, yielding a probability-like score. Mirroring the
// margin conventions of batch boosting libraries keeps train-time and
// predict-time stacking identical.
type TreeModel interface {
	Score(features [][]float64, baseMargin []float64, outputMargin bool) []float64
}

// Engine trains exactly one additive boosted tree per call.
//
// labels are 0/1, baseMargin the stacked log-odds of the existing ensemble
// for each row (nil means zero). The engine must fit a single boosting round
// against the binary logistic objective using the supplied hyperparameters.
type Engine interface {
	TrainOneRound(features [][]float64, labels []float64, baseMargin []float64, p Params) (TreeModel, error)
}

// Params are passed through to the engine untouched.
type Params struct {
	LearningRate float64
	MaxDepth     int
}

// DriftMonitor consumes a stream of 0/1 prediction-error indicators
// (0 = correct, 1 = incorrect) and reports distribution change. Monitors
// manage their own internal forgetting; the classifier never resets one, it
// discards and recreates it through the factory.
type DriftMonitor interface {
	Observe(bit int)
	Changed() bool
}

// MonitorFactory builds a fresh DriftMonitor. Required when drift detection
// is enabled so Reset can recreate the monitor from scratch.
type MonitorFactory func() DriftMonitor
