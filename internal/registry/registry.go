// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package registry owns per-service liveness state. All mutation goes
// through the Registry's mutex; readers consume point-in-time snapshots so
// the monitor loop never observes a half-written heartbeat.
package registry

import (
	"sync"
	"time"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// ServiceID identifies one monitored service. The set of valid IDs is fixed
// at construction; heartbeats from unknown sources are rejected.
type ServiceID string

// Status is the liveness classification of a service.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusUp      Status = "up"
	StatusDown    Status = "down"
)

const (
	intervalHistoryCap = 1000
	responseHistoryCap = 100
)

// ResponseTimeKey is the heartbeat detail key carrying a response-time
// sample in milliseconds.
const ResponseTimeKey = "response_ms"

type heartbeat struct {
	lastSeen         time.Time
	status           Status
	reported         string
	detail           map[string]any
	intervals        []time.Duration
	responseTimes    []float64
	alertSent        bool
	recoveryAttempts int
	heartbeats       int
}

// Counters are the aggregate metrics the registry accumulates.
type Counters struct {
	Heartbeats        int64 `json:"heartbeats"`
	Alerts            int64 `json:"alerts"`
	RecoverySucceeded int64 `json:"recovery_succeeded"`
	RecoveryFailed    int64 `json:"recovery_failed"`
	Anomalies         int64 `json:"anomalies"`
}

// ServiceSnapshot is an immutable copy of one service's state.
type ServiceSnapshot struct {
	Service          ServiceID
	LastSeen         time.Time // zero means never seen
	Status           Status
	ReportedStatus   string
	Detail           map[string]any
	IntervalHistory  []time.Duration
	ResponseTimes    []float64
	AlertSent        bool
	RecoveryAttempts int
	HeartbeatCount   int
}

// Registry tracks heartbeat state for a closed set of services.
type Registry struct {
	mu       sync.Mutex
	services map[ServiceID]*heartbeat
	counters Counters
}

// New creates a Registry for the given service set. Every service starts
// UNKNOWN with no alert sent and zero recovery attempts.
func New(services []ServiceID) *Registry {
	m := make(map[ServiceID]*heartbeat, len(services))
	for _, id := range services {
		m[id] = &heartbeat{status: StatusUnknown}
	}
	return &Registry{services: m}
}

// Record stores a heartbeat for service observed at now. It moves the
// service to UP, replaces the detail payload, clears the alert gate, and
// resets the recovery attempt counter. The inter-arrival interval is
// appended to the interval history only when now is ahead of the previous
// lastSeen; an out-of-order heartbeat is accepted but does not move time
// backward and contributes no interval sample. The reported status string is
// the reporter's own description of its state; it is kept verbatim for
// display but never drives the UP/DOWN classification.
func (r *Registry) Record(service ServiceID, reported string, detail map[string]any, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hb, ok := r.services[service]
	if !ok {
		return vigilerr.New(vigilerr.CodeRegistryUnknownService,
			"heartbeat from unrecognized service", vigilerr.FieldService(string(service)))
	}

	if !hb.lastSeen.IsZero() && now.After(hb.lastSeen) {
		hb.intervals = appendBounded(hb.intervals, now.Sub(hb.lastSeen), intervalHistoryCap)
	}
	if hb.lastSeen.IsZero() || now.After(hb.lastSeen) {
		hb.lastSeen = now
	}

	hb.status = StatusUp
	hb.reported = reported
	hb.detail = cloneDetail(detail)
	hb.alertSent = false
	hb.recoveryAttempts = 0

	if ms, ok := responseTimeSample(detail); ok {
		hb.responseTimes = appendBounded(hb.responseTimes, ms, responseHistoryCap)
	}

	hb.heartbeats++
	r.counters.Heartbeats++
	return nil
}

// IsTimedOut reports whether the service has missed its liveness window at
// now. A never-seen service is timed out. Pure predicate, no mutation.
func (r *Registry) IsTimedOut(service ServiceID, now time.Time, timeout time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	hb, ok := r.services[service]
	if !ok {
		return false
	}
	if hb.lastSeen.IsZero() {
		return true
	}
	return now.Sub(hb.lastSeen) > timeout
}

// MarkDown transitions the service to DOWN. Called only by the monitor loop
// after IsTimedOut returns true.
func (r *Registry) MarkDown(service ServiceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hb, ok := r.services[service]; ok {
		hb.status = StatusDown
	}
}

// MarkAlertSent sets the per-episode dedup gate. It is cleared only by the
// next successful Record. seenAt is the lastSeen the caller observed when it
// decided to alert: if a heartbeat has landed since, that heartbeat opened a
// new episode and already cleared the gate, so re-closing it here would
// swallow the next episode's first alert. In that case this is a no-op.
func (r *Registry) MarkAlertSent(service ServiceID, seenAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hb, ok := r.services[service]; ok && hb.lastSeen.Equal(seenAt) {
		hb.alertSent = true
	}
}

// CountAlert bumps the aggregate alert counter. Called for every alert the
// monitor sends, episode or predictive.
func (r *Registry) CountAlert() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters.Alerts++
}

// IncrementRecoveryAttempts bumps the attempt counter for the current
// timeout episode.
func (r *Registry) IncrementRecoveryAttempts(service ServiceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hb, ok := r.services[service]; ok {
		hb.recoveryAttempts++
	}
}

// RecordRecoveryOutcome folds a recovery result into the aggregate counters.
func (r *Registry) RecordRecoveryOutcome(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if success {
		r.counters.RecoverySucceeded++
	} else {
		r.counters.RecoveryFailed++
	}
}

// RecordAnomaly counts a detected cadence anomaly.
func (r *Registry) RecordAnomaly() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters.Anomalies++
}

// Counters returns a copy of the aggregate metrics.
func (r *Registry) Counters() Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters
}

// Snapshot returns deep copies of every service's state, valid at a single
// instant. Callers may retain and mutate the result freely.
func (r *Registry) Snapshot() map[ServiceID]ServiceSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[ServiceID]ServiceSnapshot, len(r.services))
	for id, hb := range r.services {
		out[id] = ServiceSnapshot{
			Service:          id,
			LastSeen:         hb.lastSeen,
			Status:           hb.status,
			ReportedStatus:   hb.reported,
			Detail:           cloneDetail(hb.detail),
			IntervalHistory:  append([]time.Duration(nil), hb.intervals...),
			ResponseTimes:    append([]float64(nil), hb.responseTimes...),
			AlertSent:        hb.alertSent,
			RecoveryAttempts: hb.recoveryAttempts,
			HeartbeatCount:   hb.heartbeats,
		}
	}
	return out
}

// Services returns the closed service set.
func (r *Registry) Services() []ServiceID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]ServiceID, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	return ids
}

func appendBounded[T any](s []T, v T, capacity int) []T {
	s = append(s, v)
	if len(s) > capacity {
		s = s[len(s)-capacity:]
	}
	return s
}

func cloneDetail(detail map[string]any) map[string]any {
	if detail == nil {
		return nil
	}
	out := make(map[string]any, len(detail))
	for k, v := range detail {
		out[k] = v
	}
	return out
}

func responseTimeSample(detail map[string]any) (float64, bool) {
	v, ok := detail[ResponseTimeKey]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
