// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-watch/vigil/internal/server"
	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show watchdog status",
		Long:  "Query the running daemon's status endpoint and display per-service state.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:8765", "daemon address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	dc := newDaemonClient(addr)
	var body struct {
		Status   string                 `json:"status"`
		Services []server.ServiceStatus `json:"services"`
		Counters struct {
			Heartbeats        int64 `json:"heartbeats"`
			Alerts            int64 `json:"alerts"`
			RecoverySucceeded int64 `json:"recovery_succeeded"`
			RecoveryFailed    int64 `json:"recovery_failed"`
			Anomalies         int64 `json:"anomalies"`
		} `json:"counters"`
	}
	if err := dc.getJSON("/api/v1/status", &body); err != nil {
		if vigilerr.HasCode(err, vigilerr.CodeCLIDaemonNotRunning) {
			_, _ = fmt.Fprintf(out, "Vigil at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Vigil at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Vigil at %s: %s\n\n", addr, body.Status)
	for _, svc := range body.Services {
		line := fmt.Sprintf("  %-20s %s", svc.Service, svc.Status)
		if svc.LastSeen != nil {
			line += fmt.Sprintf("  last seen %s", svc.LastSeen.Format(time.RFC3339))
		} else {
			line += "  never seen"
		}
		if svc.AlertSent {
			line += "  [alerted]"
		}
		if svc.RecoveryAttempts > 0 {
			line += fmt.Sprintf("  attempts=%d", svc.RecoveryAttempts)
		}
		_, _ = fmt.Fprintln(out, line)
	}
	_, _ = fmt.Fprintf(out, "\n  heartbeats=%d alerts=%d recovered=%d failed=%d anomalies=%d\n",
		body.Counters.Heartbeats, body.Counters.Alerts,
		body.Counters.RecoverySucceeded, body.Counters.RecoveryFailed, body.Counters.Anomalies)
	return nil
}
