// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

// Package recovery executes ordered remediation plans against a remote
// executor. Plans are static configuration: the set of recovery targets is
// closed and unknown targets are rejected rather than guessed at.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Action is one remediation step.
type Action struct {
	Name    string
	Command string
}

// Plan is an ordered sequence of actions tried until one succeeds.
type Plan []Action

// OutcomeStatus classifies the result of a recovery run.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeNoPlan    OutcomeStatus = "no_plan_configured"
)

// Outcome reports what a recovery run did.
type Outcome struct {
	Target           string
	Status           OutcomeStatus
	ActionThatWorked string
	Output           string
}

// Succeeded reports whether any action in the plan worked.
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded
}

// Summary renders the outcome for operator notifications.
func (o Outcome) Summary() string {
	switch o.Status {
	case OutcomeSucceeded:
		return fmt.Sprintf("recovery of %s succeeded via %s: %s", o.Target, o.ActionThatWorked, o.Output)
	case OutcomeNoPlan:
		return fmt.Sprintf("no recovery plan configured for %s", o.Target)
	default:
		return fmt.Sprintf("recovery of %s failed, all actions exhausted:\n%s", o.Target, o.Output)
	}
}

// Orchestrator runs recovery plans. It is stateless between calls; retry
// across calls is the monitor loop's concern, not this component's.
type Orchestrator struct {
	plans         map[string]Plan
	executor      Executor
	actionTimeout time.Duration
}

// DefaultActionTimeout bounds a single remediation action.
const DefaultActionTimeout = 15 * time.Second

// NewOrchestrator creates an Orchestrator over the configured plans.
func NewOrchestrator(plans map[string]Plan, executor Executor, actionTimeout time.Duration) *Orchestrator {
	if actionTimeout <= 0 {
		actionTimeout = DefaultActionTimeout
	}
	return &Orchestrator{plans: plans, executor: executor, actionTimeout: actionTimeout}
}

// HasPlan reports whether target has a configured plan.
func (o *Orchestrator) HasPlan(target string) bool {
	_, ok := o.plans[target]
	return ok
}

// Targets returns the configured recovery target names.
func (o *Orchestrator) Targets() []string {
	names := make([]string, 0, len(o.plans))
	for name := range o.plans {
		names = append(names, name)
	}
	return names
}

// RunRecovery iterates target's plan in order, stopping at the first action
// that succeeds. Each action is bounded by the orchestrator's per-action
// timeout; a timed-out action counts as a failed step and the plan moves on.
// No action is retried within a single call.
func (o *Orchestrator) RunRecovery(ctx context.Context, target string) Outcome {
	plan, ok := o.plans[target]
	if !ok {
		return Outcome{Target: target, Status: OutcomeNoPlan}
	}

	var failures []string
	for _, action := range plan {
		actionCtx, cancel := context.WithTimeout(ctx, o.actionTimeout)
		ok, output, err := o.executor.Run(actionCtx, action.Command)
		cancel()

		if err != nil {
			// Executor could not even be invoked; treat as a failed step.
			slog.Error("recovery action error", "target", target, "action", action.Name, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", action.Name, err))
			continue
		}
		if ok {
			slog.Info("recovery action succeeded", "target", target, "action", action.Name)
			return Outcome{
				Target:           target,
				Status:           OutcomeSucceeded,
				ActionThatWorked: action.Name,
				Output:           output,
			}
		}

		slog.Warn("recovery action failed", "target", target, "action", action.Name, "output", output)
		failures = append(failures, fmt.Sprintf("%s: %s", action.Name, output))
	}

	return Outcome{
		Target: target,
		Status: OutcomeFailed,
		Output: strings.Join(failures, "\n"),
	}
}
