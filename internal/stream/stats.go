package stream

import "sync/atomic"

// Stats tracks ingest health with atomic counters so the dashboard and
// status endpoint can read them without locking the client.
type Stats struct {
	received   atomic.Uint64
	parsed     atomic.Uint64
	dropped    atomic.Uint64
	parseFails atomic.Uint64
	reconnects atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the ingest counters.
type StatsSnapshot struct {
	Received   uint64 `json:"received"`
	Parsed     uint64 `json:"parsed"`
	Dropped    uint64 `json:"dropped"`
	ParseFails uint64 `json:"parse_fails"`
	Reconnects uint64 `json:"reconnects"`
}

// Snapshot reads all counters. The values are individually consistent, not
// mutually: a flow counted as received may not yet show up as parsed.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Received:   s.received.Load(),
		Parsed:     s.parsed.Load(),
		Dropped:    s.dropped.Load(),
		ParseFails: s.parseFails.Load(),
		Reconnects: s.reconnects.Load(),
	}
}
