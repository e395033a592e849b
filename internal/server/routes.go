// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vigil-watch/vigil/internal/recovery"
	"github.com/vigil-watch/vigil/internal/registry"
	"github.com/vigil-watch/vigil/internal/store"
	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// Waker sends a wake signal to a sleeping host.
type Waker interface {
	Wake(hardwareAddr string) error
}

// Deps holds the subsystems the route handlers operate on.
type Deps struct {
	Registry     *registry.Registry
	Events       *store.EventStore
	Orchestrator *recovery.Orchestrator
	Waker        Waker

	// WakeAddr is the hardware address woken by default when a wake
	// request carries no address of its own.
	WakeAddr string
}

func (d Deps) validate() error {
	if d.Registry == nil {
		return vigilerr.New(vigilerr.CodeServerConfigInvalid, "registry is required")
	}
	if d.Events == nil {
		return vigilerr.New(vigilerr.CodeServerConfigInvalid, "event store is required")
	}
	if d.Orchestrator == nil {
		return vigilerr.New(vigilerr.CodeServerConfigInvalid, "recovery orchestrator is required")
	}
	if d.Waker == nil {
		return vigilerr.New(vigilerr.CodeServerConfigInvalid, "waker is required")
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "heartbeat",
		Method:      http.MethodPost,
		Path:        "/heartbeat",
		Summary:     "Record a service heartbeat",
		Tags:        []string{"heartbeats"},
	}, s.handleHeartbeat)

	huma.Register(s.api, huma.Operation{
		OperationID: "watchdog-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Watchdog status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/events",
		Summary:     "List recent events",
		Tags:        []string{"events"},
	}, s.handleListEvents)

	huma.Register(s.api, huma.Operation{
		OperationID: "run-recovery",
		Method:      http.MethodPost,
		Path:        "/api/v1/recovery/{target}",
		Summary:     "Run a recovery plan",
		Tags:        []string{"recovery"},
	}, s.handleRunRecovery)

	huma.Register(s.api, huma.Operation{
		OperationID: "wake",
		Method:      http.MethodPost,
		Path:        "/api/v1/wake",
		Summary:     "Send a wake signal",
		Tags:        []string{"recovery"},
	}, s.handleWake)
}

// --- Request/Response types for huma ---

type heartbeatInput struct {
	Body struct {
		Source  string         `json:"source" minLength:"1" doc:"Service identifier"`
		Status  string         `json:"status,omitempty" doc:"Self-reported status"`
		Details map[string]any `json:"details,omitempty" doc:"Free-form payload; response_ms is tracked"`
	}
}

type heartbeatOutput struct {
	Body struct {
		Status     string    `json:"status" example:"ok"`
		ReceivedAt time.Time `json:"received_at"`
	}
}

// ServiceStatus is the per-service view returned by the status endpoint.
type ServiceStatus struct {
	Service          string     `json:"service"`
	Status           string     `json:"status" example:"up"`
	ReportedStatus   string     `json:"reported_status,omitempty"`
	LastSeen         *time.Time `json:"last_seen,omitempty"`
	AlertSent        bool       `json:"alert_sent"`
	RecoveryAttempts int        `json:"recovery_attempts"`
	HeartbeatCount   int        `json:"heartbeat_count"`
}

type statusOutput struct {
	Body struct {
		Status   string            `json:"status" example:"ok"`
		Services []ServiceStatus   `json:"services"`
		Counters registry.Counters `json:"counters"`
	}
}

type listEventsInput struct {
	Hours int    `query:"hours" default:"24" minimum:"1" maximum:"720" doc:"Lookback window"`
	Kind  string `query:"kind" doc:"Filter by event kind"`
}

type listEventsOutput struct {
	Body struct {
		Events []store.Event `json:"events"`
	}
}

type runRecoveryInput struct {
	Target string `path:"target"`
}

type runRecoveryOutput struct {
	Body struct {
		Target  string `json:"target"`
		Status  string `json:"status" example:"succeeded"`
		Summary string `json:"summary"`
	}
}

type wakeInput struct {
	Body struct {
		HardwareAddr string `json:"hardware_addr,omitempty" doc:"Overrides the configured address"`
	}
}

type wakeOutput struct {
	Body struct {
		Status       string `json:"status" example:"sent"`
		HardwareAddr string `json:"hardware_addr"`
	}
}

// --- Handlers ---

func (s *Server) handleHeartbeat(ctx context.Context, input *heartbeatInput) (*heartbeatOutput, error) {
	now := s.nowFunc()

	err := s.deps.Registry.Record(registry.ServiceID(input.Body.Source), input.Body.Status, input.Body.Details, now)
	if err != nil {
		if vigilerr.HasCode(err, vigilerr.CodeRegistryUnknownService) {
			return nil, huma.Error400BadRequest(fmt.Sprintf("unknown service %q", input.Body.Source))
		}
		return nil, huma.Error500InternalServerError("recording heartbeat", err)
	}

	s.deps.Events.Append(ctx, store.NewEvent(store.KindHeartbeat, input.Body.Source,
		"heartbeat received", input.Body.Details, now))

	out := &heartbeatOutput{}
	out.Body.Status = "ok"
	out.Body.ReceivedAt = now
	return out, nil
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	snap := s.deps.Registry.Snapshot()

	services := make([]ServiceStatus, 0, len(snap))
	for id, sv := range snap {
		st := ServiceStatus{
			Service:          string(id),
			Status:           string(sv.Status),
			ReportedStatus:   sv.ReportedStatus,
			AlertSent:        sv.AlertSent,
			RecoveryAttempts: sv.RecoveryAttempts,
			HeartbeatCount:   sv.HeartbeatCount,
		}
		if !sv.LastSeen.IsZero() {
			t := sv.LastSeen
			st.LastSeen = &t
		}
		services = append(services, st)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Service < services[j].Service })

	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Services = services
	out.Body.Counters = s.deps.Registry.Counters()
	return out, nil
}

func (s *Server) handleListEvents(_ context.Context, input *listEventsInput) (*listEventsOutput, error) {
	hours := input.Hours
	if hours <= 0 {
		hours = 24
	}
	since := s.nowFunc().Add(-time.Duration(hours) * time.Hour)

	var events []store.Event
	if input.Kind != "" {
		events = s.deps.Events.RecentByKind(store.Kind(input.Kind), "", since)
	} else {
		events = s.deps.Events.Recent(since)
	}

	out := &listEventsOutput{}
	out.Body.Events = events
	if out.Body.Events == nil {
		out.Body.Events = []store.Event{}
	}
	return out, nil
}

func (s *Server) handleRunRecovery(ctx context.Context, input *runRecoveryInput) (*runRecoveryOutput, error) {
	if !s.deps.Orchestrator.HasPlan(input.Target) {
		return nil, huma.Error404NotFound(fmt.Sprintf("no recovery plan configured for %q", input.Target))
	}

	outcome := s.deps.Orchestrator.RunRecovery(ctx, input.Target)
	s.deps.Registry.RecordRecoveryOutcome(outcome.Succeeded())
	s.deps.Events.Append(ctx, store.NewEvent(store.KindRecovery, input.Target,
		outcome.Summary(), map[string]any{"trigger": "manual", "status": string(outcome.Status)}, s.nowFunc()))

	out := &runRecoveryOutput{}
	out.Body.Target = input.Target
	out.Body.Status = string(outcome.Status)
	out.Body.Summary = outcome.Summary()
	return out, nil
}

func (s *Server) handleWake(ctx context.Context, input *wakeInput) (*wakeOutput, error) {
	addr := input.Body.HardwareAddr
	if addr == "" {
		addr = s.deps.WakeAddr
	}

	if err := s.deps.Waker.Wake(addr); err != nil {
		if vigilerr.HasCode(err, vigilerr.CodeMonitorWakeInvalid) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("sending wake signal", err)
	}

	s.deps.Events.Append(ctx, store.NewEvent(store.KindWake, "manual",
		"wake signal sent", map[string]any{"hardware_addr": addr}, s.nowFunc()))

	out := &wakeOutput{}
	out.Body.Status = "sent"
	out.Body.HardwareAddr = addr
	return out, nil
}
