// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package monitor

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Prober checks whether a host is reachable before the loop picks a
// recovery branch.
type Prober interface {
	Probe(ctx context.Context, host string) (reachable bool, latency time.Duration)
}

// TCPProber probes by dialing a TCP port on the host. The original
// deployment reaches the machine over its SSH port, so that is the default.
type TCPProber struct {
	Port    int
	Timeout time.Duration

	// dial overrides the dialer (for testing).
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewTCPProber creates a prober against the given port. Zero values fall
// back to port 22 and a 5s timeout.
func NewTCPProber(port int, timeout time.Duration) *TCPProber {
	if port == 0 {
		port = 22
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TCPProber{Port: port, Timeout: timeout}
}

// Probe dials host and reports reachability with the observed connect
// latency. Any dial failure means unreachable; the reason does not matter
// to the branch decision.
func (p *TCPProber) Probe(ctx context.Context, host string) (bool, time.Duration) {
	dial := p.dial
	if dial == nil {
		d := &net.Dialer{Timeout: p.Timeout}
		dial = d.DialContext
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	conn, err := dial(dialCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(p.Port)))
	if err != nil {
		return false, 0
	}
	_ = conn.Close()
	return true, time.Since(start)
}
