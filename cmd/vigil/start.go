// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/vigil-watch/vigil/internal/alert"
	"github.com/vigil-watch/vigil/internal/config"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the vigil watchdog",
		Long:  "Load configuration, initialize all subsystems, and run the monitor loop and HTTP server until interrupted.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		// No explicit --config: use whatever file initViper discovered from
		// the standard locations, if any.
		cfgPath = viper.ConfigFileUsed()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply any flag/env overrides that Viper resolved.
	if listen := viper.GetString("networking.listen"); listen != "" {
		cfg.Networking.Listen = listen
	}

	setupLogging(viper.GetBool("verbose"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := WireWatchdog(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// A bad bot token would silently eat every alert, so check it up front.
	// Network trouble here is not fatal: the daemon must still watch.
	if token := cfg.Alerts.Telegram.Token; token != "" {
		if err := alert.ValidateTelegramToken(ctx, alertHTTPClient, token); err != nil {
			slog.Warn("telegram token check failed", "error", err)
		}
	}

	slog.Info("starting vigil", "listen", cfg.Networking.Listen, "services", len(cfg.Services))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Server.Start(ctx) })
	g.Go(func() error { return w.Loop.Run(ctx) })

	return g.Wait()
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
