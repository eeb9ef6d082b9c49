// Package gbt is an in-process gradient-boosted-tree engine for binary
// logistic objectives. It fits exactly one additive regression tree per
// training call using second-order (Newton) gradients, which is the contract
// the online learner in internal/boost expects from its boosting engine.
package gbt

import (
	"fmt"
	"math"
	"sort"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
)

// Engine fits single boosting rounds. The regularization knobs follow the
// usual second-order boosting formulation; zero values get safe defaults.
type Engine struct {
	// Lambda is the L2 penalty on leaf weights.
	Lambda float64
	// Gamma is the minimum gain required to keep a split.
	Gamma float64
	// MinChildWeight is the minimum hessian sum allowed in a child.
	MinChildWeight float64
}

// NewEngine returns an engine with the default regularization settings.
func NewEngine() *Engine {
	return &Engine{Lambda: 1.0, Gamma: 0.0, MinChildWeight: 1.0}
}

// TrainOneRound fits one regression tree against the logistic objective.
// baseMargin carries the stacked log-odds of the existing ensemble per row
// (nil means zero). Labels must be 0 or 1.
func (e *Engine) TrainOneRound(features [][]float64, labels []float64, baseMargin []float64, p boost.Params) (boost.TreeModel, error) {
	n := len(features)
	if n == 0 {
		return nil, fmt.Errorf("empty training batch")
	}
	if len(labels) != n {
		return nil, fmt.Errorf("got %d labels for %d feature rows", len(labels), n)
	}
	if baseMargin != nil && len(baseMargin) != n {
		return nil, fmt.Errorf("got %d base margins for %d feature rows", len(baseMargin), n)
	}
	dim := len(features[0])
	for i, row := range features {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), dim)
		}
	}

	lr := p.LearningRate
	if lr <= 0 {
		lr = 0.3
	}
	depth := p.MaxDepth
	if depth <= 0 {
		depth = 3
	}

	// Newton step on the logistic loss: grad = p - y, hess = p(1-p).
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range features {
		base := 0.0
		if baseMargin != nil {
			base = baseMargin[i]
		}
		prob := Sigmoid(base)
		grad[i] = prob - labels[i]
		hess[i] = prob * (1 - prob)
	}

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}

	t := &Tree{}
	t.Nodes = append(t.Nodes, node{})
	e.buildNode(t, 0, features, grad, hess, rows, depth, lr)
	return t, nil
}

// buildNode recursively grows the tree from the given node index.
func (e *Engine) buildNode(t *Tree, idx int, features [][]float64, grad, hess []float64, rows []int, depth int, lr float64) {
	var sumG, sumH float64
	for _, r := range rows {
		sumG += grad[r]
		sumH += hess[r]
	}

	if depth == 0 || len(rows) < 2 {
		t.Nodes[idx] = leafNode(sumG, sumH, e.Lambda, lr)
		return
	}

	best := e.bestSplit(features, grad, hess, rows, sumG, sumH)
	if best.gain <= 0 {
		t.Nodes[idx] = leafNode(sumG, sumH, e.Lambda, lr)
		return
	}

	var left, right []int
	for _, r := range rows {
		if features[r][best.feature] < best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	leftIdx := len(t.Nodes)
	t.Nodes = append(t.Nodes, node{}, node{})
	t.Nodes[idx] = node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      leftIdx,
		Right:     leftIdx + 1,
		Gain:      best.gain,
	}
	e.buildNode(t, leftIdx, features, grad, hess, left, depth-1, lr)
	e.buildNode(t, leftIdx+1, features, grad, hess, right, depth-1, lr)
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit scans every feature for the highest-gain threshold. Gain follows
// the standard second-order formula with the parent score subtracted.
func (e *Engine) bestSplit(features [][]float64, grad, hess []float64, rows []int, sumG, sumH float64) split {
	best := split{gain: 0}
	parent := score(sumG, sumH, e.Lambda)
	order := make([]int, len(rows))

	for f := 0; f < len(features[rows[0]]); f++ {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool {
			return features[order[i]][f] < features[order[j]][f]
		})

		var gl, hl float64
		for i := 0; i < len(order)-1; i++ {
			r := order[i]
			gl += grad[r]
			hl += hess[r]

			v, next := features[r][f], features[order[i+1]][f]
			if v == next {
				continue
			}
			gr, hr := sumG-gl, sumH-hl
			if hl < e.MinChildWeight || hr < e.MinChildWeight {
				continue
			}

			gain := 0.5*(score(gl, hl, e.Lambda)+score(gr, hr, e.Lambda)-parent) - e.Gamma
			if gain > best.gain {
				best = split{feature: f, threshold: (v + next) / 2, gain: gain}
			}
		}
	}
	return best
}

func score(g, h, lambda float64) float64 {
	return g * g / (h + lambda)
}

func leafNode(sumG, sumH, lambda, lr float64) node {
	return node{Leaf: true, Weight: -sumG / (sumH + lambda) * lr}
}

// Sigmoid converts a log-odds margin into a probability. Large magnitudes
// are clamped so the exponential cannot overflow.
func Sigmoid(x float64) float64 {
	if x > 36 {
		return 1
	}
	if x < -36 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
