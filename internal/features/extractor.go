package features

import (
	"container/ring"
	"sync"
	"time"
)

// behavioralFeatureNames extend the per-flow vector with per-source rolling
// statistics.
var behavioralFeatureNames = []string{
	"src_conn_rate",
	"src_distinct_ports",
	"src_half_open_ratio",
}

// sourceState tracks one source address over rolling windows.
type sourceState struct {
	times      *ring.Ring // recent flow timestamps
	ports      *ring.Ring // recent destination ports
	handshakes *ring.Ring // recent SYN-without-ACK indicators
	lastSeen   time.Time
}

// Extractor turns flow records into full feature vectors, appending
// behavioral features computed per source address: connection rate over a
// time window, distinct destination ports (the scan signal), and the ratio
// of half-open connections. Safe for concurrent use.
type Extractor struct {
	rateWindow time.Duration
	rateSize   int
	portSize   int
	flagSize   int
	idleTTL    time.Duration

	mu      sync.RWMutex
	sources map[string]*sourceState
}

// ExtractorConfig sizes the rolling windows. Zero values get defaults.
type ExtractorConfig struct {
	RateWindow time.Duration // connection-rate lookback
	RateSize   int           // flow timestamps remembered per source; caps the measurable rate at RateSize/RateWindow
	PortSize   int           // destination ports remembered per source
	FlagSize   int           // handshake outcomes remembered per source
	IdleTTL    time.Duration // drop per-source state idle this long
}

// NewExtractor builds an extractor with the given window sizing.
func NewExtractor(c ExtractorConfig) *Extractor {
	if c.RateWindow <= 0 {
		c.RateWindow = 10 * time.Second
	}
	if c.RateSize <= 0 {
		c.RateSize = 256
	}
	if c.PortSize <= 0 {
		c.PortSize = 64
	}
	if c.FlagSize <= 0 {
		c.FlagSize = 64
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 10 * time.Minute
	}
	return &Extractor{
		rateWindow: c.RateWindow,
		rateSize:   c.RateSize,
		portSize:   c.PortSize,
		flagSize:   c.FlagSize,
		idleTTL:    c.IdleTTL,
		sources:    make(map[string]*sourceState),
	}
}

// FeatureNames returns the names aligned with Observe's vector positions.
func (e *Extractor) FeatureNames() []string {
	names := make([]string, 0, len(flowFeatureNames)+len(behavioralFeatureNames))
	names = append(names, flowFeatureNames...)
	names = append(names, behavioralFeatureNames...)
	return names
}

// Dim returns the full feature vector length.
func (e *Extractor) Dim() int {
	return len(flowFeatureNames) + len(behavioralFeatureNames)
}

// Observe updates the source's rolling windows with the flow and returns the
// complete feature vector: per-flow features followed by behavioral ones.
func (e *Extractor) Observe(f FlowRecord) []float64 {
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	e.mu.Lock()
	st := e.sources[f.SrcAddr]
	if st == nil {
		st = &sourceState{
			times:      ring.New(e.rateSize),
			ports:      ring.New(e.portSize),
			handshakes: ring.New(e.flagSize),
		}
		e.sources[f.SrcAddr] = st
	}

	st.times.Value = ts
	st.times = st.times.Next()
	st.ports.Value = f.DstPort
	st.ports = st.ports.Next()
	st.handshakes.Value = f.SynCount > 0 && f.AckCount == 0
	st.handshakes = st.handshakes.Next()
	st.lastSeen = ts

	rate := e.connRate(st, ts)
	distinct := distinctPorts(st)
	halfOpen := halfOpenRatio(st)

	if len(e.sources) > 1 && len(e.sources)%64 == 0 {
		e.evictIdle(ts)
	}
	e.mu.Unlock()

	return append(f.Vector(), rate, distinct, halfOpen)
}

// Sources returns the number of source addresses currently tracked.
func (e *Extractor) Sources() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sources)
}

// connRate counts flows from this source inside the rate window, per second.
func (e *Extractor) connRate(st *sourceState, now time.Time) float64 {
	cutoff := now.Add(-e.rateWindow)
	count := 0
	st.times.Do(func(x any) {
		if t, ok := x.(time.Time); ok && t.After(cutoff) {
			count++
		}
	})
	return float64(count) / e.rateWindow.Seconds()
}

func distinctPorts(st *sourceState) float64 {
	seen := make(map[int]struct{})
	st.ports.Do(func(x any) {
		if p, ok := x.(int); ok {
			seen[p] = struct{}{}
		}
	})
	return float64(len(seen))
}

func halfOpenRatio(st *sourceState) float64 {
	var half, total int
	st.handshakes.Do(func(x any) {
		if b, ok := x.(bool); ok {
			total++
			if b {
				half++
			}
		}
	})
	if total == 0 {
		return 0
	}
	return float64(half) / float64(total)
}

// evictIdle drops sources not seen within the idle TTL. Caller holds the
// write lock.
func (e *Extractor) evictIdle(now time.Time) {
	cutoff := now.Add(-e.idleTTL)
	for addr, st := range e.sources {
		if st.lastSeen.Before(cutoff) {
			delete(e.sources, addr)
		}
	}
}
