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

// mcnemarCritical is the chi-squared critical value at p=0.05 with one
// degree of freedom.
const mcnemarCritical = 3.841

// Candidate pairs a learner configuration with its own feature extractor.
// Each candidate needs a private extractor because extraction state (rates,
// distinct-port windows) is itself part of the model under test.
type Candidate struct {
	Name      string
	Learner   *boost.Classifier
	Extractor *features.Extractor
}

// Comparison is the outcome of an A/B replay of two candidates over the same
// flow sequence.
type Comparison struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	A *Result `json:"a"`
	B *Result `json:"b"`

	// Discordant counts: AOnlyCorrect is flows A classified correctly and
	// B did not, BOnlyCorrect the reverse.
	AOnlyCorrect int `json:"a_only_correct"`
	BOnlyCorrect int `json:"b_only_correct"`

	// McNemar's test over the discordant pairs, with continuity
	// correction. Significant when the statistic exceeds the p=0.05
	// critical value for one degree of freedom.
	McNemarChi2 float64 `json:"mcnemar_chi2"`
	Significant bool    `json:"significant"`

	// Winner names the candidate with higher accuracy, or "tie". Only
	// meaningful when Significant is true.
	Winner string `json:"winner"`
}

// Compare replays the dataset through both candidates in lockstep, so each
// flow is scored by both models at the same point in the stream. Both
// candidates train prequentially, exactly as in a single-model run.
func Compare(ctx context.Context, loader *Loader, a, b Candidate) (*Comparison, error) {
	if loader.Count() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if a.Name == b.Name {
		return nil, fmt.Errorf("candidates need distinct names, both are %q", a.Name)
	}

	cmp := &Comparison{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		A:         &Result{RunID: uuid.New().String(), Name: a.Name, StartedAt: time.Now()},
		B:         &Result{RunID: uuid.New().String(), Name: b.Name, StartedAt: time.Now()},
	}

	log.Info().
		Str("run_id", cmp.RunID).
		Str("a", a.Name).
		Str("b", b.Name).
		Int("flows", loader.Count()).
		Msg("starting A/B evaluation")

	loader.Reset()
	for loader.HasNext() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		flow := loader.Next()

		vecA := a.Extractor.Observe(flow)
		vecB := b.Extractor.Observe(flow)

		predA := a.Learner.Predict([][]float64{vecA})[0]
		predB := b.Learner.Predict([][]float64{vecB})[0]
		cmp.A.record(predA, flow.Label)
		cmp.B.record(predB, flow.Label)

		correctA := predA == flow.Label
		correctB := predB == flow.Label
		if correctA && !correctB {
			cmp.AOnlyCorrect++
		} else if correctB && !correctA {
			cmp.BOnlyCorrect++
		}

		if err := a.Learner.Learn(vecA, flow.Label); err != nil {
			return nil, fmt.Errorf("candidate %s training: %w", a.Name, err)
		}
		if err := b.Learner.Learn(vecB, flow.Label); err != nil {
			return nil, fmt.Errorf("candidate %s training: %w", b.Name, err)
		}
	}

	cmp.FinishedAt = time.Now()
	cmp.A.FinishedAt = cmp.FinishedAt
	cmp.B.FinishedAt = cmp.FinishedAt
	cmp.A.LearnerStatus = a.Learner.Status()
	cmp.B.LearnerStatus = b.Learner.Status()
	cmp.A.finalize()
	cmp.B.finalize()
	cmp.judge()

	log.Info().
		Str("run_id", cmp.RunID).
		Float64("a_accuracy", cmp.A.Accuracy).
		Float64("b_accuracy", cmp.B.Accuracy).
		Float64("chi2", cmp.McNemarChi2).
		Bool("significant", cmp.Significant).
		Str("winner", cmp.Winner).
		Msg("A/B evaluation finished")
	return cmp, nil
}

// judge computes the McNemar statistic and picks a winner.
func (c *Comparison) judge() {
	discordant := c.AOnlyCorrect + c.BOnlyCorrect
	if discordant > 0 {
		diff := float64(c.AOnlyCorrect - c.BOnlyCorrect)
		if diff < 0 {
			diff = -diff
		}
		// Continuity correction keeps the statistic conservative on
		// small discordant counts.
		adjusted := diff - 1
		if adjusted < 0 {
			adjusted = 0
		}
		c.McNemarChi2 = adjusted * adjusted / float64(discordant)
	}
	c.Significant = c.McNemarChi2 > mcnemarCritical

	switch {
	case c.A.Accuracy > c.B.Accuracy:
		c.Winner = c.A.Name
	case c.B.Accuracy > c.A.Accuracy:
		c.Winner = c.B.Name
	default:
		c.Winner = "tie"
	}
}
