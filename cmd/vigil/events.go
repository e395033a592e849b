// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-watch/vigil/internal/store"
	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent watchdog events",
		RunE:  runEvents,
	}

	cmd.Flags().String("address", "127.0.0.1:8765", "daemon address to check")
	cmd.Flags().Int("hours", 24, "lookback window in hours")
	cmd.Flags().String("kind", "", "filter by event kind")

	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	hours, _ := cmd.Flags().GetInt("hours")
	kind, _ := cmd.Flags().GetString("kind")
	out := cmd.OutOrStdout()

	path := fmt.Sprintf("/api/v1/events?hours=%d", hours)
	if kind != "" {
		path += "&kind=" + kind
	}

	dc := newDaemonClient(addr)
	var body struct {
		Events []store.Event `json:"events"`
	}
	if err := dc.getJSON(path, &body); err != nil {
		if vigilerr.HasCode(err, vigilerr.CodeCLIDaemonNotRunning) {
			_, _ = fmt.Fprintf(out, "Vigil at %s is not running (connection refused)\n", addr)
			return nil
		}
		return err
	}

	if len(body.Events) == 0 {
		_, _ = fmt.Fprintln(out, "No events in window")
		return nil
	}

	for _, e := range body.Events {
		_, _ = fmt.Fprintf(out, "%s  %-10s %-12s %s\n",
			e.Timestamp.Format(time.RFC3339), e.Kind, e.Source, e.Message)
	}
	return nil
}
