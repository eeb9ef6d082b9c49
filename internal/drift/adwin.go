// Package drift implements the ADWIN adaptive-windowing change detector over
// a stream of 0/1 prediction-error indicators. The detector maintains an
// exponential histogram of the recent stream and reports a change whenever
// two adjacent sub-windows have significantly different means, shrinking its
// own window to the recent side. It satisfies the boost.DriftMonitor
// contract: the learner feeds it error bits and polls Changed after each one.
package drift

import (
	"math"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultDelta is the confidence parameter of the cut test.
	DefaultDelta = 0.002
	// maxBucketsPerRow bounds the exponential histogram rows; when a row
	// overflows, its two oldest buckets merge into the next row.
	maxBucketsPerRow = 5
	// checkEvery throttles the O(buckets) cut scan.
	checkEvery = 32
)

// bucket aggregates 2^row observations.
type bucket struct {
	total    float64
	variance float64
	count    int
}

// ADWIN is the adaptive window detector. Not safe for concurrent use; the
// owning classifier is itself single-writer.
type ADWIN struct {
	delta      float64
	rows       [][]bucket // rows[i] holds buckets of 2^i observations, newest first
	width      int
	total      float64
	variance   float64
	sinceCheck int
	changed    bool
	detections int
}

// New builds a detector with the given confidence delta. delta <= 0 falls
// back to DefaultDelta.
func New(delta float64) *ADWIN {
	if delta <= 0 {
		delta = DefaultDelta
	}
	a := &ADWIN{delta: delta}
	a.Reset()
	return a
}

// Reset discards the whole window and all statistics.
func (a *ADWIN) Reset() {
	a.rows = [][]bucket{{}}
	a.width = 0
	a.total = 0
	a.variance = 0
	a.sinceCheck = 0
	a.changed = false
	a.detections = 0
}

// Observe feeds one 0/1 error indicator. The cut test runs every checkEvery
// observations; when it fires, the oldest buckets are dropped until the two
// halves of the remaining window agree.
func (a *ADWIN) Observe(bit int) {
	v := float64(bit)

	if a.width > 0 {
		mean := a.total / float64(a.width)
		a.variance += (v - mean) * (v - mean) * float64(a.width) / float64(a.width+1)
	}
	a.width++
	a.total += v
	a.rows[0] = append([]bucket{{total: v, count: 1}}, a.rows[0]...)
	a.compress(0)

	a.changed = false
	a.sinceCheck++
	if a.sinceCheck >= checkEvery {
		a.sinceCheck = 0
		a.changed = a.detectCut()
		if a.changed {
			a.detections++
			log.Debug().
				Int("width", a.width).
				Float64("mean", a.Mean()).
				Int("detections", a.detections).
				Msg("adaptive window cut")
		}
	}
}

// Changed reports whether the most recent Observe detected a distribution
// change.
func (a *ADWIN) Changed() bool { return a.changed }

// Width returns the current adaptive window length.
func (a *ADWIN) Width() int { return a.width }

// Mean returns the error rate over the current window.
func (a *ADWIN) Mean() float64 {
	if a.width == 0 {
		return 0
	}
	return a.total / float64(a.width)
}

// Detections returns how many cuts have fired since the last Reset.
func (a *ADWIN) Detections() int { return a.detections }

// compress merges the two oldest buckets of an overflowing row into one
// bucket of the next row.
func (a *ADWIN) compress(row int) {
	for len(a.rows[row]) > maxBucketsPerRow {
		if row+1 == len(a.rows) {
			a.rows = append(a.rows, nil)
		}
		n := len(a.rows[row])
		b1, b2 := a.rows[row][n-1], a.rows[row][n-2]

		size := float64(int(1) << row)
		m1, m2 := b1.total/size, b2.total/size
		merged := bucket{
			total:    b1.total + b2.total,
			variance: b1.variance + b2.variance + (m1-m2)*(m1-m2)*size/2,
			count:    b1.count + b2.count,
		}
		a.rows[row] = a.rows[row][:n-2]
		a.rows[row+1] = append(a.rows[row+1], merged)
		row++
	}
}

// detectCut walks every prefix/suffix split of the window, oldest bucket
// first, and drops the oldest bucket whenever the two sides differ by more
// than the epsilon bound. Returns true if anything was dropped.
func (a *ADWIN) detectCut() bool {
	if a.width < 2 {
		return false
	}
	cut := false

	for reduced := true; reduced; {
		reduced = false

		// The older sub-window accumulates from the oldest bucket inward.
		var n0 int
		var t0 float64
		for row := len(a.rows) - 1; row >= 0 && !reduced; row-- {
			for i := len(a.rows[row]) - 1; i >= 0; i-- {
				b := a.rows[row][i]
				n0 += b.count
				t0 += b.total
				n1 := a.width - n0
				if n1 < 1 {
					break
				}

				u0 := t0 / float64(n0)
				u1 := (a.total - t0) / float64(n1)
				if a.cutExpression(n0, n1, u0-u1) {
					cut = true
					reduced = true
					a.dropOldest()
					break
				}
			}
		}
		if a.width < 2 {
			break
		}
	}
	return cut
}

// cutExpression is the ADWIN bound: the two sub-window means differ
// significantly when |u0-u1| exceeds epsilon for the harmonic sample size m.
func (a *ADWIN) cutExpression(n0, n1 int, diff float64) bool {
	n := float64(a.width)
	deltaPrime := a.delta / math.Log(n)
	v := a.variance / n
	m := 1 / (1/float64(n0) + 1/float64(n1))

	lnTerm := math.Log(2 / deltaPrime)
	eps := math.Sqrt(2/m*v*lnTerm) + 2/(3*m)*lnTerm
	return math.Abs(diff) > eps
}

// dropOldest removes the single oldest bucket and rescales the running
// statistics to the surviving window.
func (a *ADWIN) dropOldest() {
	row := len(a.rows) - 1
	for row > 0 && len(a.rows[row]) == 0 {
		row--
	}
	if len(a.rows[row]) == 0 {
		return
	}

	n := len(a.rows[row])
	b := a.rows[row][n-1]
	a.rows[row] = a.rows[row][:n-1]

	a.width -= b.count
	a.total -= b.total
	if a.width > 0 {
		mean := b.total / float64(b.count)
		windowMean := a.total / float64(a.width)
		a.variance -= b.variance + float64(b.count)*float64(a.width)/float64(a.width+b.count)*(mean-windowMean)*(mean-windowMean)
		if a.variance < 0 {
			a.variance = 0
		}
	} else {
		a.variance = 0
	}

	// Trim empty high rows.
	for len(a.rows) > 1 && len(a.rows[len(a.rows)-1]) == 0 {
		a.rows = a.rows[:len(a.rows)-1]
	}
}
