// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package monitor drives the watchdog: it ticks on a fixed period, reads a
// registry snapshot, and turns timeouts and anomalies into alerts and
// recovery runs. It is the single writer of the derived status fields (DOWN
// transitions, the alert-sent gate, attempt counters).
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vigil-watch/vigil/internal/alert"
	"github.com/vigil-watch/vigil/internal/anomaly"
	"github.com/vigil-watch/vigil/internal/recovery"
	"github.com/vigil-watch/vigil/internal/registry"
	"github.com/vigil-watch/vigil/internal/store"
)

// ServiceInfo is the monitor's per-service configuration.
type ServiceInfo struct {
	Host           string
	RecoveryTarget string
}

// Options wires a Loop.
type Options struct {
	Registry     *registry.Registry
	Orchestrator *recovery.Orchestrator
	Escalator    *alert.Escalator
	Events       *store.EventStore
	Prober       Prober
	Waker        Waker
	Services     map[registry.ServiceID]ServiceInfo

	HeartbeatTimeout time.Duration
	TickInterval     time.Duration
	ZThreshold       float64
	WakeAddr         string
}

const (
	defaultTimeout      = 180 * time.Second
	defaultTickInterval = 60 * time.Second
	defaultZThreshold   = 2.0
	failureLookback     = 6 * time.Hour
)

// Loop evaluates the per-service state machine once per tick.
type Loop struct {
	opts    Options
	order   []registry.ServiceID
	nowFunc func() time.Time

	// seenIntervals tracks how much of each interval history has already
	// been scored, so one anomaly is reported once, not on every tick.
	seenIntervals map[registry.ServiceID]int

	wg sync.WaitGroup
}

// New creates a Loop. Zero durations and thresholds take the defaults.
func New(opts Options) *Loop {
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = defaultTimeout
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.ZThreshold <= 0 {
		opts.ZThreshold = defaultZThreshold
	}

	order := make([]registry.ServiceID, 0, len(opts.Services))
	for id := range opts.Services {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	return &Loop{
		opts:          opts,
		order:         order,
		nowFunc:       time.Now,
		seenIntervals: make(map[registry.ServiceID]int),
	}
}

// SetNowFunc overrides the time source (for testing).
func (l *Loop) SetNowFunc(fn func() time.Time) {
	l.nowFunc = fn
}

// Run ticks until ctx is cancelled, then waits for in-flight recovery
// dispatches to finish.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("monitor loop started",
		"tick", l.opts.TickInterval, "timeout", l.opts.HeartbeatTimeout, "services", len(l.order))

	ticker := time.NewTicker(l.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.wg.Wait()
			slog.Info("monitor loop stopped")
			return nil
		case <-ticker.C:
			l.Tick(ctx, l.nowFunc())
		}
	}
}

// WaitRecoveries blocks until every dispatched recovery run has finished.
func (l *Loop) WaitRecoveries() {
	l.wg.Wait()
}

// Tick runs one evaluation pass at now. Exported so tests can drive the
// state machine without real time.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	snap := l.opts.Registry.Snapshot()

	for _, id := range l.order {
		s, ok := snap[id]
		if !ok {
			continue
		}
		l.evaluate(ctx, id, s, now)
	}
}

func (l *Loop) evaluate(ctx context.Context, id registry.ServiceID, s registry.ServiceSnapshot, now time.Time) {
	if l.opts.Registry.IsTimedOut(id, now, l.opts.HeartbeatTimeout) {
		l.handleTimeout(ctx, id, s, now)
		// handleTimeout closed the dedup gate; reflect that locally so the
		// degradation check in this same tick stays gated.
		s.AlertSent = true
	} else {
		l.checkCadence(ctx, id, s, now)
	}

	l.checkDegradation(ctx, id, s, now)
}

func (l *Loop) handleTimeout(ctx context.Context, id registry.ServiceID, s registry.ServiceSnapshot, now time.Time) {
	if s.Status != registry.StatusDown {
		l.opts.Registry.MarkDown(id)
		l.opts.Events.Append(ctx, store.NewEvent(store.KindFailure, string(id),
			"heartbeat timeout", map[string]any{"last_seen": lastSeenString(s.LastSeen)}, now))
	}

	if s.AlertSent {
		return
	}

	info := l.opts.Services[id]
	reachable, latency := l.opts.Prober.Probe(ctx, info.Host)

	if !reachable {
		msg := fmt.Sprintf("%s is DOWN and host %s is unreachable.\nLast heartbeat: %s\n\nSending wake signal...",
			id, info.Host, lastSeenString(s.LastSeen))
		l.sendAlert(ctx, string(id), msg, alert.LevelCritical, now)

		if err := l.opts.Waker.Wake(l.opts.WakeAddr); err != nil {
			slog.Error("wake signal failed", "service", id, "error", err)
		} else {
			l.opts.Events.Append(ctx, store.NewEvent(store.KindWake, string(id),
				"wake signal sent", map[string]any{"hardware_addr": l.opts.WakeAddr}, now))
		}
		l.opts.Registry.IncrementRecoveryAttempts(id)
	} else {
		msg := fmt.Sprintf("%s is DOWN but host %s is reachable (%dms).\nLast heartbeat: %s\n\nAttempting recovery...",
			id, info.Host, latency.Milliseconds(), lastSeenString(s.LastSeen))
		l.sendAlert(ctx, string(id), msg, alert.LevelWarning, now)

		l.opts.Registry.IncrementRecoveryAttempts(id)
		l.dispatchRecovery(ctx, id, info.RecoveryTarget)
	}

	// The dedup gate: set after either branch, cleared only by the next
	// successful heartbeat. Passing the snapshot's lastSeen makes this a
	// no-op when a heartbeat raced in since Snapshot, so a fresh episode
	// never starts with the gate already closed.
	l.opts.Registry.MarkAlertSent(id, s.LastSeen)
}

// dispatchRecovery runs the plan on its own goroutine so a slow or hung
// remote action never delays the next tick or heartbeat ingestion.
func (l *Loop) dispatchRecovery(ctx context.Context, id registry.ServiceID, target string) {
	if target == "" {
		target = string(id)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		outcome := l.opts.Orchestrator.RunRecovery(ctx, target)
		now := l.nowFunc()

		switch outcome.Status {
		case recovery.OutcomeNoPlan:
			l.opts.Events.Append(ctx, store.NewEvent(store.KindRecovery, string(id),
				"no recovery plan configured", map[string]any{"target": target}, now))
		default:
			l.opts.Registry.RecordRecoveryOutcome(outcome.Succeeded())
			l.opts.Events.Append(ctx, store.NewEvent(store.KindRecovery, string(id),
				outcome.Summary(), map[string]any{"target": target, "status": string(outcome.Status)}, now))
		}

		l.opts.Escalator.Notify(ctx, outcome.Summary())
	}()
}

// checkCadence scores newly arrived inter-heartbeat intervals against the
// service's history.
func (l *Loop) checkCadence(ctx context.Context, id registry.ServiceID, s registry.ServiceSnapshot, now time.Time) {
	n := len(s.IntervalHistory)
	if n == 0 || n <= l.seenIntervals[id] {
		return
	}
	l.seenIntervals[id] = n

	current := s.IntervalHistory[n-1]
	history := s.IntervalHistory[:n-1]

	verdict := anomaly.DetectIntervalAnomaly(history, current, l.opts.ZThreshold)
	if !verdict.Anomalous {
		return
	}

	l.opts.Registry.RecordAnomaly()
	l.opts.Events.Append(ctx, store.NewEvent(store.KindAnomaly, string(id), verdict.Reason, nil, now))
	l.sendAlert(ctx, string(id), fmt.Sprintf("heartbeat cadence anomaly on %s: %s", id, verdict.Reason),
		alert.LevelWarning, now)
}

// checkDegradation runs the advisory heuristics. A predictive warning does
// not set the dedup gate, so it repeats on subsequent ticks until a real
// timeout occurs or the condition clears.
func (l *Loop) checkDegradation(ctx context.Context, id registry.ServiceID, s registry.ServiceSnapshot, now time.Time) {
	if s.AlertSent {
		return
	}

	failures := l.opts.Events.RecentByKind(store.KindFailure, string(id), now.Add(-failureLookback))
	failureTimes := make([]time.Time, len(failures))
	for i, e := range failures {
		failureTimes[i] = e.Timestamp
	}

	finding, ok := anomaly.PredictDegradation(s.ResponseTimes, failureTimes, s.RecoveryAttempts, now)
	if !ok {
		return
	}

	l.sendAlert(ctx, string(id), fmt.Sprintf("predictive: %s on %s: %s", finding.Kind, id, finding.Message),
		alert.LevelWarning, now)
}

func (l *Loop) sendAlert(ctx context.Context, source, message string, level alert.Level, now time.Time) {
	l.opts.Escalator.SendAlert(ctx, message, level)
	l.opts.Registry.CountAlert()
	l.opts.Events.Append(ctx, store.NewEvent(store.KindAlert, source, message,
		map[string]any{"level": string(level)}, now))
}

func lastSeenString(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
