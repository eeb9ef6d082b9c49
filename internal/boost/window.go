package boost

import "fmt"

// Example is one labeled observation drawn from the stream.
type Example struct {
	Features []float64
	Label    int
}

// Window buffers incoming examples and decides when enough have accumulated
// to trigger a training round. The trigger threshold starts at the minimum,
// doubles after every training, and clamps at the maximum; a drift reset
// drops it back to the minimum so the ensemble re-adapts quickly.
type Window struct {
	buf []Example
	// size is the externally effective trigger threshold, always <= max.
	// dynamic is the growth accumulator; it stops doubling at max so an
	// arbitrarily long stream cannot overflow it.
	size    int
	dynamic int
	min     int
	max     int
}

// NewWindow builds a window with the given bounds. min <= 0 means no minimum
// was configured and the window starts (and resets) at max.
func NewWindow(min, max int) *Window {
	if max <= 0 {
		panic(fmt.Sprintf("window: non-positive max size %d", max))
	}
	if min <= 0 {
		min = max
	}
	w := &Window{min: min, max: max}
	w.Reset()
	return w
}

// Accumulate appends one example to the buffer. Never fails.
func (w *Window) Accumulate(ex Example) {
	w.buf = append(w.buf, ex)
}

// Ready reports whether the buffer holds at least one full mini-batch.
func (w *Window) Ready() bool {
	return len(w.buf) >= w.size
}

// Drain removes and returns the oldest Size() examples. Calling Drain when
// Ready is false is a programming error and panics: the orchestrator only
// drains after a Ready check, so a short buffer here means the invariants
// are already broken.
func (w *Window) Drain() []Example {
	if len(w.buf) < w.size {
		panic(fmt.Sprintf("window: drain of %d buffered examples before %d accumulated", len(w.buf), w.size))
	}
	batch := make([]Example, w.size)
	copy(batch, w.buf)
	n := copy(w.buf, w.buf[w.size:])
	w.buf = w.buf[:n]
	return batch
}

// Grow doubles the trigger threshold, clamping the effective size at max.
// Once the accumulator reaches max further calls are no-ops until Reset, so
// the counter stays bounded on unbounded streams. Called once per successful
// training round.
func (w *Window) Grow() {
	if w.dynamic < w.max {
		w.dynamic *= 2
	}
	if w.dynamic > w.max {
		w.size = w.max
	} else {
		w.size = w.dynamic
	}
}

// Reset drops the threshold back to the configured minimum (or max when no
// minimum was configured). Buffered examples are kept: drift invalidates the
// window sizing, not the data waiting to be learned.
func (w *Window) Reset() {
	w.dynamic = w.min
	w.size = w.dynamic
}

// Size returns the current trigger threshold.
func (w *Window) Size() int { return w.size }

// Buffered returns the number of examples waiting for the next training.
func (w *Window) Buffered() int { return len(w.buf) }
