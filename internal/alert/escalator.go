// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package alert formats and routes operator notifications. The escalator is
// a dumb, reliable delivery mechanism: it performs no deduplication and
// never fails the caller. Deciding when to alert is the monitor loop's job.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the escalation level of an alert.
type Level string

const (
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Channel delivers a notification to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, text string) error
}

const (
	historyCap = 100
	// smsTruncateLen caps the secondary-channel rendering of a critical
	// alert to roughly one SMS segment.
	smsTruncateLen = 140
)

// envelopeHeader prefixes every primary-channel alert.
const envelopeHeader = "🚨 *VIGIL ALERT*\n\n"

// Record is an audit entry for one SendAlert call, kept regardless of
// whether delivery succeeded.
type Record struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	Delivered []string  `json:"delivered"`
}

// Escalator routes alerts across the primary channel and, for critical
// alerts, an optional secondary channel.
type Escalator struct {
	mu        sync.Mutex
	primary   Channel
	secondary Channel // nil when not configured
	history   []Record
	nowFunc   func() time.Time
}

// NewEscalator creates an Escalator. secondary may be nil; critical alerts
// are then recorded but not escalated further, which is not an error.
func NewEscalator(primary, secondary Channel) *Escalator {
	return &Escalator{primary: primary, secondary: secondary, nowFunc: time.Now}
}

// SetNowFunc overrides the time source (for testing).
func (e *Escalator) SetNowFunc(fn func() time.Time) {
	e.mu.Lock()
	e.nowFunc = fn
	e.mu.Unlock()
}

// SendAlert delivers message at the given level. The primary channel always
// receives the full alert envelope; critical alerts additionally go to the
// secondary channel in truncated form. Delivery failures are logged and
// swallowed: alerting must never crash the monitor.
func (e *Escalator) SendAlert(ctx context.Context, message string, level Level) {
	var delivered []string

	if err := e.primary.Send(ctx, envelopeHeader+message); err != nil {
		slog.Error("alert delivery failed", "channel", e.primary.Name(), "level", level, "error", err)
	} else {
		delivered = append(delivered, e.primary.Name())
	}

	if level == LevelCritical && e.secondary != nil {
		if err := e.secondary.Send(ctx, truncate("VIGIL: "+message, smsTruncateLen)); err != nil {
			slog.Error("alert delivery failed", "channel", e.secondary.Name(), "level", level, "error", err)
		} else {
			delivered = append(delivered, e.secondary.Name())
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, Record{
		ID:        uuid.NewString(),
		Time:      e.nowFunc(),
		Message:   message,
		Level:     level,
		Delivered: delivered,
	})
	if len(e.history) > historyCap {
		e.history = e.history[len(e.history)-historyCap:]
	}
}

// Notify sends a plain follow-up message through the primary channel only.
// Unlike SendAlert it carries no envelope and appends no audit record; it is
// used for recovery outcome reports that trail an already-recorded alert.
func (e *Escalator) Notify(ctx context.Context, message string) {
	if err := e.primary.Send(ctx, message); err != nil {
		slog.Error("notify delivery failed", "channel", e.primary.Name(), "error", err)
	}
}

// History returns a copy of the alert audit ring, oldest first.
func (e *Escalator) History() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Record(nil), e.history...)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
