// Package respond turns malicious verdicts into alerts. The tracker owns the
// alert lifecycle: per-source cooldown suppression, active-set queries for the
// API and dashboard, and TTL-based expiry.
package respond

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AlertStatus represents the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusExpired      AlertStatus = "EXPIRED"
)

// Alert is one raised intrusion alert.
type Alert struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	Dest      string      `json:"dest"`
	DstPort   int         `json:"dst_port"`
	Protocol  string      `json:"protocol"`
	Reason    string      `json:"reason"`
	Status    AlertStatus `json:"status"`
	RaisedAt  time.Time   `json:"raised_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Tracker manages alert state with TTL expiry and per-source cooldown.
type Tracker struct {
	mu           sync.RWMutex
	alerts       map[string]*Alert
	lastBySource map[string]time.Time
	ttl          time.Duration
	cooldown     time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewTracker creates a tracker and starts its expiry sweep goroutine.
// Call Stop to shut the sweep down.
func NewTracker(ttl, cooldown time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if cooldown < 0 {
		cooldown = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		alerts:       make(map[string]*Alert),
		lastBySource: make(map[string]time.Time),
		ttl:          ttl,
		cooldown:     cooldown,
		cancel:       cancel,
	}

	t.wg.Add(1)
	go t.sweep(ctx)
	return t
}

// Stop gracefully stops the expiry sweep.
func (t *Tracker) Stop() {
	t.cancel()
	t.wg.Wait()
}

// Raise creates an alert for the source unless the per-source cooldown is
// still running. Returns the alert and whether it was actually raised.
func (t *Tracker) Raise(source, dest string, dstPort int, protocol, reason string) (Alert, bool) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, seen := t.lastBySource[source]; seen && now.Sub(last) < t.cooldown {
		return Alert{}, false
	}

	alert := &Alert{
		ID:        uuid.New().String(),
		Source:    source,
		Dest:      dest,
		DstPort:   dstPort,
		Protocol:  protocol,
		Reason:    reason,
		Status:    AlertStatusActive,
		RaisedAt:  now,
		ExpiresAt: now.Add(t.ttl),
	}
	t.alerts[alert.ID] = alert
	t.lastBySource[source] = now

	log.Warn().
		Str("alert_id", alert.ID).
		Str("source", source).
		Str("dest", dest).
		Int("dst_port", dstPort).
		Str("reason", reason).
		Msg("intrusion alert raised")

	return *alert, true
}

// Acknowledge marks an active alert as handled by an operator.
func (t *Tracker) Acknowledge(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	alert, exists := t.alerts[id]
	if !exists {
		return fmt.Errorf("alert not found: %s", id)
	}
	if alert.Status != AlertStatusActive {
		return fmt.Errorf("alert %s is %s, not active", id, alert.Status)
	}
	alert.Status = AlertStatusAcknowledged
	return nil
}

// Get returns a copy of one alert.
func (t *Tracker) Get(id string) (Alert, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	alert, exists := t.alerts[id]
	if !exists {
		return Alert{}, fmt.Errorf("alert not found: %s", id)
	}
	return *alert, nil
}

// Active returns all active alerts, newest first.
func (t *Tracker) Active() []Alert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := make([]Alert, 0)
	for _, alert := range t.alerts {
		if alert.Status == AlertStatusActive {
			active = append(active, *alert)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].RaisedAt.After(active[j].RaisedAt)
	})
	return active
}

// Count returns the number of tracked alerts by status.
func (t *Tracker) Count() map[AlertStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[AlertStatus]int)
	for _, alert := range t.alerts {
		counts[alert.Status]++
	}
	return counts
}

// sweep expires and evicts stale alerts periodically.
func (t *Tracker) sweep(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.expireStale(time.Now())
		}
	}
}

// expireStale flips past-TTL alerts to expired and drops anything expired for
// longer than one further TTL, so the map cannot grow without bound.
func (t *Tracker) expireStale(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, alert := range t.alerts {
		if alert.Status == AlertStatusActive && now.After(alert.ExpiresAt) {
			alert.Status = AlertStatusExpired
			log.Debug().Str("alert_id", id).Str("source", alert.Source).Msg("alert expired")
		}
		if now.After(alert.ExpiresAt.Add(t.ttl)) {
			delete(t.alerts, id)
		}
	}
	for source, last := range t.lastBySource {
		if now.Sub(last) > t.cooldown+t.ttl {
			delete(t.lastBySource, source)
		}
	}
}
