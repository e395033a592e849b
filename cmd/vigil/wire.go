// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vigil-watch/vigil/internal/alert"
	"github.com/vigil-watch/vigil/internal/config"
	"github.com/vigil-watch/vigil/internal/monitor"
	"github.com/vigil-watch/vigil/internal/recovery"
	"github.com/vigil-watch/vigil/internal/registry"
	"github.com/vigil-watch/vigil/internal/server"
	"github.com/vigil-watch/vigil/internal/store"
	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// alertHTTPClient is shared by the messaging channels. Telegram and Twilio
// both answer quickly; a hung alert must not stall the monitor.
var alertHTTPClient = &http.Client{Timeout: 10 * time.Second}

// Watchdog holds all wired subsystems and manages their lifecycle.
type Watchdog struct {
	Server    *server.Server
	Loop      *monitor.Loop
	Registry  *registry.Registry
	Events    *store.EventStore
	Escalator *alert.Escalator
}

// Close releases persistent resources.
func (w *Watchdog) Close() error {
	return w.Events.Close()
}

// WireWatchdog creates all subsystems and wires them together.
func WireWatchdog(ctx context.Context, cfg *config.Config) (*Watchdog, error) {
	events, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, vigilerr.Wrap(err, vigilerr.CodeCLISetupFailure, "opening event store")
	}

	ids := make([]registry.ServiceID, 0, len(cfg.Services))
	services := make(map[registry.ServiceID]monitor.ServiceInfo, len(cfg.Services))
	for name, sc := range cfg.Services {
		id := registry.ServiceID(name)
		ids = append(ids, id)
		services[id] = monitor.ServiceInfo{
			Host:           sc.Host,
			RecoveryTarget: sc.DefaultTarget,
		}
	}
	reg := registry.New(ids)

	executor := recovery.NewSSHExecutor(recovery.SSHConfig{
		Host:    cfg.Remote.Host,
		User:    cfg.Remote.User,
		KeyPath: cfg.Remote.SSHKey,
	})
	plans := make(map[string]recovery.Plan, len(cfg.Recovery.Plans))
	for target, actions := range cfg.Recovery.Plans {
		plan := make(recovery.Plan, 0, len(actions))
		for _, a := range actions {
			plan = append(plan, recovery.Action{Name: a.Name, Command: a.Command})
		}
		plans[target] = plan
	}
	orch := recovery.NewOrchestrator(plans, executor, cfg.Remote.CommandTimeout)

	escalator := alert.NewEscalator(buildChannels(cfg))

	waker := monitor.NewWOLWaker()

	loop := monitor.New(monitor.Options{
		Registry:         reg,
		Orchestrator:     orch,
		Escalator:        escalator,
		Events:           events,
		Prober:           monitor.NewTCPProber(0, 0),
		Waker:            waker,
		Services:         services,
		HeartbeatTimeout: cfg.Monitor.HeartbeatTimeout,
		TickInterval:     cfg.Monitor.TickInterval,
		ZThreshold:       cfg.Monitor.AnomalyZThreshold,
		WakeAddr:         cfg.Remote.MACAddress,
	})

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
	}, server.Deps{
		Registry:     reg,
		Events:       events,
		Orchestrator: orch,
		Waker:        waker,
		WakeAddr:     cfg.Remote.MACAddress,
	})
	if err != nil {
		_ = events.Close()
		return nil, err
	}

	events.Append(ctx, store.NewEvent(store.KindStartup, "vigil",
		"watchdog started", map[string]any{"services": len(ids)}, time.Now()))

	return &Watchdog{
		Server:    srv,
		Loop:      loop,
		Registry:  reg,
		Events:    events,
		Escalator: escalator,
	}, nil
}

// buildChannels maps the alert configuration onto the escalation pair.
// Without a Telegram token the process log becomes the primary channel;
// the SMS channel is attached only when fully configured and enabled.
func buildChannels(cfg *config.Config) (primary, secondary alert.Channel) {
	if cfg.Alerts.Telegram.Token != "" {
		primary = alert.NewTelegram(alertHTTPClient, cfg.Alerts.Telegram.Token, cfg.Alerts.Telegram.ChatID)
	} else {
		slog.Warn("no telegram token configured, alerts go to the process log")
		primary = alert.LogChannel{}
	}

	sms := cfg.Alerts.SMS
	if sms.Enabled {
		secondary = alert.NewTwilioSMS(alertHTTPClient, sms.AccountSID, sms.AuthToken, sms.From, sms.To)
	}
	return primary, secondary
}
