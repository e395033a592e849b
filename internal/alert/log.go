// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package alert

import (
	"context"
	"log/slog"
)

// LogChannel writes notifications to the process log. It stands in as the
// primary channel when no messaging channel is configured, so a bare
// deployment still surfaces alerts somewhere.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Send(_ context.Context, text string) error {
	slog.Warn("alert", "message", text)
	return nil
}
