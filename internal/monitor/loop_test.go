// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package monitor_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-watch/vigil/internal/alert"
	"github.com/vigil-watch/vigil/internal/monitor"
	"github.com/vigil-watch/vigil/internal/recovery"
	"github.com/vigil-watch/vigil/internal/registry"
	"github.com/vigil-watch/vigil/internal/store"
)

const gateway = registry.ServiceID("gateway")

type fakeProber struct {
	reachable bool
	latency   time.Duration
	probes    int
}

func (f *fakeProber) Probe(context.Context, string) (bool, time.Duration) {
	f.probes++
	return f.reachable, f.latency
}

type fakeWaker struct {
	addrs []string
}

func (f *fakeWaker) Wake(addr string) error {
	f.addrs = append(f.addrs, addr)
	return nil
}

type recordingChannel struct {
	mu   sync.Mutex
	name string
	sent []string
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *recordingChannel) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type stubExecutor struct {
	mu    sync.Mutex
	ok    bool
	calls int
}

func (s *stubExecutor) Run(context.Context, string) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.ok, "restart output", nil
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type harness struct {
	reg       *registry.Registry
	loop      *monitor.Loop
	events    *store.EventStore
	escalator *alert.Escalator
	primary   *recordingChannel
	secondary *recordingChannel
	prober    *fakeProber
	waker     *fakeWaker
	executor  *stubExecutor
}

func newHarness(t *testing.T, reachable bool, recoverySucceeds bool) *harness {
	t.Helper()

	reg := registry.New([]registry.ServiceID{gateway})
	events := store.NewMemory()
	primary := &recordingChannel{name: "telegram"}
	secondary := &recordingChannel{name: "sms"}
	escalator := alert.NewEscalator(primary, secondary)
	prober := &fakeProber{reachable: reachable, latency: 12 * time.Millisecond}
	waker := &fakeWaker{}
	executor := &stubExecutor{ok: recoverySucceeds}

	orch := recovery.NewOrchestrator(map[string]recovery.Plan{
		"gateway": {{Name: "graceful-restart", Command: "openclaw gateway restart"}},
	}, executor, time.Second)

	loop := monitor.New(monitor.Options{
		Registry:     reg,
		Orchestrator: orch,
		Escalator:    escalator,
		Events:       events,
		Prober:       prober,
		Waker:        waker,
		Services: map[registry.ServiceID]monitor.ServiceInfo{
			gateway: {Host: "192.168.86.48", RecoveryTarget: "gateway"},
		},
		HeartbeatTimeout: 180 * time.Second,
		WakeAddr:         "aa:bb:cc:dd:ee:ff",
	})

	return &harness{
		reg: reg, loop: loop, events: events, escalator: escalator,
		primary: primary, secondary: secondary, prober: prober, waker: waker, executor: executor,
	}
}

func TestEndToEndReachableRecovery(t *testing.T) {
	h := newHarness(t, true, true)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, h.reg.Record(gateway, "ok", nil, t0))

	h.loop.Tick(ctx, t0.Add(200*time.Second))
	h.loop.WaitRecoveries()

	snap := h.reg.Snapshot()[gateway]
	assert.Equal(t, registry.StatusDown, snap.Status)
	assert.True(t, snap.AlertSent)
	assert.Equal(t, 1, snap.RecoveryAttempts)

	// One warning alert mentioning the host was reachable, plus the
	// recovery follow-up notification.
	history := h.escalator.History()
	require.Len(t, history, 1)
	assert.Equal(t, alert.LevelWarning, history[0].Level)
	assert.Contains(t, history[0].Message, "reachable")

	msgs := h.primary.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "recovery of gateway succeeded")

	assert.Equal(t, 1, h.executor.callCount())
	assert.Empty(t, h.waker.addrs)
	assert.Equal(t, int64(1), h.reg.Counters().RecoverySucceeded)

	// Heartbeat after the episode resets the gate and counters.
	require.NoError(t, h.reg.Record(gateway, "ok", nil, t0.Add(210*time.Second)))
	snap = h.reg.Snapshot()[gateway]
	assert.Equal(t, registry.StatusUp, snap.Status)
	assert.False(t, snap.AlertSent)
	assert.Equal(t, 0, snap.RecoveryAttempts)
}

func TestAlertDedupWithinEpisode(t *testing.T) {
	h := newHarness(t, true, true)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, h.reg.Record(gateway, "ok", nil, t0))

	h.loop.Tick(ctx, t0.Add(190*time.Second))
	h.loop.Tick(ctx, t0.Add(250*time.Second))
	h.loop.Tick(ctx, t0.Add(310*time.Second))
	h.loop.WaitRecoveries()

	// Exactly one alert for the whole episode.
	require.Len(t, h.escalator.History(), 1)
	assert.Equal(t, 1, h.executor.callCount())

	// Recovery succeeds, heartbeat resumes, then a second outage produces
	// exactly one new alert.
	require.NoError(t, h.reg.Record(gateway, "ok", nil, t0.Add(400*time.Second)))
	h.loop.Tick(ctx, t0.Add(700*time.Second))
	h.loop.WaitRecoveries()

	assert.Len(t, h.escalator.History(), 2)
}

func TestUnreachableHostGetsCriticalAndWake(t *testing.T) {
	h := newHarness(t, false, true)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, h.reg.Record(gateway, "ok", nil, t0))
	h.loop.Tick(ctx, t0.Add(300*time.Second))
	h.loop.WaitRecoveries()

	history := h.escalator.History()
	require.Len(t, history, 1)
	assert.Equal(t, alert.LevelCritical, history[0].Level)
	assert.Contains(t, history[0].Message, "unreachable")

	// Critical escalates to the secondary channel.
	assert.Len(t, h.secondary.messages(), 1)

	// Wake signal instead of SSH recovery.
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, h.waker.addrs)
	assert.Equal(t, 0, h.executor.callCount())

	snap := h.reg.Snapshot()[gateway]
	assert.Equal(t, 1, snap.RecoveryAttempts)
	assert.True(t, snap.AlertSent)
}

func TestNeverSeenServiceIsDownAfterFirstTick(t *testing.T) {
	h := newHarness(t, true, true)
	ctx := context.Background()

	h.loop.Tick(ctx, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	h.loop.WaitRecoveries()

	snap := h.reg.Snapshot()[gateway]
	assert.Equal(t, registry.StatusDown, snap.Status)
	require.Len(t, h.escalator.History(), 1)
	assert.Contains(t, h.escalator.History()[0].Message, "never")
}

func TestFailedRecoveryReported(t *testing.T) {
	h := newHarness(t, true, false)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, h.reg.Record(gateway, "ok", nil, t0))
	h.loop.Tick(ctx, t0.Add(200*time.Second))
	h.loop.WaitRecoveries()

	msgs := h.primary.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "all actions exhausted")
	assert.Equal(t, int64(1), h.reg.Counters().RecoveryFailed)

	// The loop keeps ticking after a failed recovery; nothing panicked and
	// the next tick is a no-op for the same episode.
	h.loop.Tick(ctx, t0.Add(260*time.Second))
	h.loop.WaitRecoveries()
	assert.Len(t, h.escalator.History(), 1)
}

func TestCadenceAnomalyAlert(t *testing.T) {
	h := newHarness(t, true, true)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// 21 heartbeats at a perfect 60s cadence, then one 100s gap (still
	// inside the liveness window).
	ts := t0
	require.NoError(t, h.reg.Record(gateway, "ok", nil, ts))
	for i := 0; i < 20; i++ {
		ts = ts.Add(60 * time.Second)
		require.NoError(t, h.reg.Record(gateway, "ok", nil, ts))
	}
	ts = ts.Add(100 * time.Second)
	require.NoError(t, h.reg.Record(gateway, "ok", nil, ts))

	h.loop.Tick(ctx, ts.Add(10*time.Second))

	history := h.escalator.History()
	require.Len(t, history, 1)
	assert.Equal(t, alert.LevelWarning, history[0].Level)
	assert.Contains(t, history[0].Message, "cadence anomaly")
	assert.Equal(t, int64(1), h.reg.Counters().Anomalies)

	// Same interval is not re-scored on the next tick.
	h.loop.Tick(ctx, ts.Add(20*time.Second))
	assert.Len(t, h.escalator.History(), 1)
}

func TestPredictiveDegradationWarning(t *testing.T) {
	h := newHarness(t, true, true)
	ctx := context.Background()
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Response times drifting well past the 1.5x threshold.
	ts := t0
	for i := 0; i < 5; i++ {
		require.NoError(t, h.reg.Record(gateway, "ok", map[string]any{registry.ResponseTimeKey: 100.0}, ts))
		ts = ts.Add(60 * time.Second)
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, h.reg.Record(gateway, "ok", map[string]any{registry.ResponseTimeKey: 250.0}, ts))
		ts = ts.Add(60 * time.Second)
	}

	h.loop.Tick(ctx, ts)

	var predictive []string
	for _, m := range h.primary.messages() {
		if strings.Contains(m, "predictive") {
			predictive = append(predictive, m)
		}
	}
	require.Len(t, predictive, 1)
	assert.Contains(t, predictive[0], "response_drift")

	// Predictive warnings do not set the dedup gate, so they repeat while
	// the condition holds.
	assert.False(t, h.reg.Snapshot()[gateway].AlertSent)
	h.loop.Tick(ctx, ts.Add(30*time.Second))
	count := 0
	for _, m := range h.primary.messages() {
		if strings.Contains(m, "predictive") {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t, true, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
