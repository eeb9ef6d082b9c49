package boost

import "fmt"

// Strategy selects how freshly trained trees enter the capacity-bounded
// ensemble. Invalid values are unrepresentable after ParseStrategy.
type Strategy int

const (
	// StrategyReplace overwrites slots round-robin through a wrapping cursor.
	StrategyReplace Strategy = iota
	// StrategyPush appends to a FIFO queue, evicting the oldest at capacity.
	StrategyPush
)

const (
	strategyReplaceName = "replace"
	strategyPushName    = "push"
)

// UpdateStrategies lists the accepted configuration values.
var UpdateStrategies = []string{strategyPushName, strategyReplaceName}

// ParseStrategy maps a configuration string onto a Strategy. Anything outside
// the accepted set fails; construction never silently defaults.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case strategyReplaceName:
		return StrategyReplace, nil
	case strategyPushName:
		return StrategyPush, nil
	default:
		return 0, fmt.Errorf("invalid update strategy %q: must be one of %v", s, UpdateStrategies)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyReplace:
		return strategyReplaceName
	case StrategyPush:
		return strategyPushName
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// store is the capacity-bounded tree collection behind a classifier.
//
// live returns the members prediction stacks over, in slot/queue order.
// contributors returns the members whose margins feed the NEXT training
// round. For push the two coincide; for replace, contributors are only the
// slots before the write cursor, so after a wrap or a cursor reset a fresh
// generation of trees starts stacking from zero while the stale slots keep
// serving predictions until overwritten.
type store interface {
	insert(tree TreeModel)
	live() []TreeModel
	contributors() []TreeModel
	count() int
	capacity() int
	resetCursor()
}

func newStore(s Strategy, capacity int) store {
	if s == StrategyPush {
		return &pushStore{cap: capacity}
	}
	return &replaceStore{slots: make([]TreeModel, capacity)}
}

// replaceStore keeps a fixed slot array and a wrapping write cursor. Slot i
// held the i-th (mod capacity) tree ever trained, so walking slots in index
// order, skipping unset ones, yields training order. Overwriting discards the
// previous occupant silently; its margin contribution simply disappears.
// That progressive forgetting is the point of the strategy.
type replaceStore struct {
	slots  []TreeModel
	cursor int
}

func (r *replaceStore) insert(tree TreeModel) {
	r.slots[r.cursor] = tree
	r.cursor = (r.cursor + 1) % len(r.slots)
}

func (r *replaceStore) live() []TreeModel {
	members := make([]TreeModel, 0, len(r.slots))
	for _, t := range r.slots {
		if t != nil {
			members = append(members, t)
		}
	}
	return members
}

func (r *replaceStore) contributors() []TreeModel {
	members := make([]TreeModel, 0, r.cursor)
	for _, t := range r.slots[:r.cursor] {
		if t != nil {
			members = append(members, t)
		}
	}
	return members
}

func (r *replaceStore) count() int {
	n := 0
	for _, t := range r.slots {
		if t != nil {
			n++
		}
	}
	return n
}

func (r *replaceStore) capacity() int { return len(r.slots) }

// resetCursor rewinds the write cursor to slot 0 without clearing contents.
// Paired with a window reset on drift: newly trained trees overwrite the
// stale ones from the front as they arrive.
func (r *replaceStore) resetCursor() { r.cursor = 0 }

// pushStore is a FIFO queue capped at capacity.
type pushStore struct {
	queue []TreeModel
	cap   int
}

func (p *pushStore) insert(tree TreeModel) {
	if len(p.queue) == p.cap {
		copy(p.queue, p.queue[1:])
		p.queue[len(p.queue)-1] = tree
		return
	}
	p.queue = append(p.queue, tree)
}

func (p *pushStore) live() []TreeModel {
	members := make([]TreeModel, len(p.queue))
	copy(members, p.queue)
	return members
}

// contributors for the queue layout are all current members. At capacity the
// head still contributes to the new tree's base margins even though it is
// evicted by the same insert; the published algorithm trains before it
// evicts, and that ordering is kept.
func (p *pushStore) contributors() []TreeModel {
	return p.live()
}

func (p *pushStore) count() int { return len(p.queue) }

func (p *pushStore) capacity() int { return p.cap }

// resetCursor is meaningless for the queue layout; eviction alone forgets.
func (p *pushStore) resetCursor() {}
