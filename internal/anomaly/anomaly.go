// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package anomaly provides statistical analysis over heartbeat histories.
// Everything here is pure computation: no state, no I/O, no side effects.
package anomaly

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MinSamples is the minimum interval-history size required before cadence
// analysis produces a conclusive verdict. Below this, the detector always
// returns Inconclusive so cold starts never raise false anomalies.
const MinSamples = 10

// Verdict is the result of a cadence analysis.
type Verdict struct {
	Anomalous    bool
	Inconclusive bool
	Reason       string
	ZScore       float64
	Mean         time.Duration
}

// DetectIntervalAnomaly scores current against the historical inter-arrival
// intervals (which exclude the current sample). A zero standard deviation is
// special-cased: a perfectly regular history makes any differing interval
// anomalous, and division by zero never happens.
func DetectIntervalAnomaly(history []time.Duration, current time.Duration, zThreshold float64) Verdict {
	if len(history) < MinSamples {
		return Verdict{
			Inconclusive: true,
			Reason:       fmt.Sprintf("insufficient data: %d of %d samples", len(history), MinSamples),
		}
	}

	samples := make([]float64, len(history))
	for i, d := range history {
		samples[i] = d.Seconds()
	}

	mean := stat.Mean(samples, nil)
	stddev := stat.StdDev(samples, nil)
	meanDur := time.Duration(mean * float64(time.Second))

	if stddev == 0 {
		if current.Seconds() == mean {
			return Verdict{
				Mean:   meanDur,
				Reason: "no variance in history, interval matches constant cadence",
			}
		}
		return Verdict{
			Anomalous: true,
			Mean:      meanDur,
			Reason: fmt.Sprintf("interval %s deviates from constant cadence %s",
				current.Round(time.Millisecond), meanDur.Round(time.Millisecond)),
		}
	}

	z := (current.Seconds() - mean) / stddev
	v := Verdict{ZScore: z, Mean: meanDur}
	if z < 0 {
		v.Anomalous = -z > zThreshold
	} else {
		v.Anomalous = z > zThreshold
	}

	if v.Anomalous {
		v.Reason = fmt.Sprintf("interval %s is %.1f stddevs from mean %s",
			current.Round(time.Millisecond), z, meanDur.Round(time.Millisecond))
	} else {
		v.Reason = fmt.Sprintf("interval %s within %.1f stddevs of mean %s",
			current.Round(time.Millisecond), z, meanDur.Round(time.Millisecond))
	}
	return v
}

// FindingKind names which degradation heuristic fired.
type FindingKind string

const (
	FindingResponseDrift FindingKind = "response_drift"
	FindingFlapping      FindingKind = "flapping"
	FindingStuckRecovery FindingKind = "stuck_recovery"
)

// Finding is an advisory degradation prediction. It never triggers recovery
// on its own; callers surface it as a notification.
type Finding struct {
	Kind    FindingKind
	Message string
}

const (
	driftWindow     = 5
	driftFactor     = 1.5
	flappingWindow  = 6 * time.Hour
	flappingMinimum = 3
	stuckAttempts   = 2
)

// PredictDegradation evaluates the three degradation heuristics in fixed
// priority order and returns the first that fires. responseTimes are the
// most recent samples oldest-first; failureEvents are timestamps of
// failure-kind events.
func PredictDegradation(responseTimes []float64, failureEvents []time.Time, recoveryAttempts int, now time.Time) (Finding, bool) {
	if len(responseTimes) >= driftWindow*2 {
		recent := stat.Mean(responseTimes[len(responseTimes)-driftWindow:], nil)
		older := stat.Mean(responseTimes[len(responseTimes)-driftWindow*2:len(responseTimes)-driftWindow], nil)
		if older > 0 && recent > older*driftFactor {
			return Finding{
				Kind: FindingResponseDrift,
				Message: fmt.Sprintf("response times degrading: recent mean %.0fms vs %.0fms before",
					recent, older),
			}, true
		}
	}

	cutoff := now.Add(-flappingWindow)
	recentFailures := 0
	for _, ts := range failureEvents {
		if ts.After(cutoff) {
			recentFailures++
		}
	}
	if recentFailures >= flappingMinimum {
		return Finding{
			Kind:    FindingFlapping,
			Message: fmt.Sprintf("%d failures in the last %s, service is flapping", recentFailures, flappingWindow),
		}, true
	}

	if recoveryAttempts >= stuckAttempts {
		return Finding{
			Kind: FindingStuckRecovery,
			Message: fmt.Sprintf("%d recovery attempts without a successful heartbeat, likely underlying fault",
				recoveryAttempts),
		}, true
	}

	return Finding{}, false
}
