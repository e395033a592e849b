// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package monitor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCountConn struct {
	net.Conn
	closed int
}

func (c *closeCountConn) Close() error {
	c.closed++
	return nil
}

func TestTCPProberDefaults(t *testing.T) {
	p := NewTCPProber(0, 0)
	assert.Equal(t, 22, p.Port)
	assert.Equal(t, 5*time.Second, p.Timeout)

	p = NewTCPProber(8765, time.Second)
	assert.Equal(t, 8765, p.Port)
	assert.Equal(t, time.Second, p.Timeout)
}

func TestTCPProberReachable(t *testing.T) {
	conn := &closeCountConn{}
	var dialed string
	p := NewTCPProber(22, time.Second)
	p.dial = func(_ context.Context, network, addr string) (net.Conn, error) {
		dialed = network + " " + addr
		return conn, nil
	}

	reachable, latency := p.Probe(context.Background(), "192.168.86.48")
	assert.True(t, reachable)
	assert.GreaterOrEqual(t, latency, time.Duration(0))
	assert.Equal(t, "tcp 192.168.86.48:22", dialed)
	assert.Equal(t, 1, conn.closed)
}

func TestTCPProberUnreachable(t *testing.T) {
	p := NewTCPProber(22, time.Second)
	p.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	reachable, latency := p.Probe(context.Background(), "192.168.86.48")
	assert.False(t, reachable)
	assert.Zero(t, latency)
}

func TestTCPProberJoinsIPv6Hosts(t *testing.T) {
	var dialed string
	p := NewTCPProber(22, time.Second)
	p.dial = func(_ context.Context, _, addr string) (net.Conn, error) {
		dialed = addr
		return nil, errors.New("refused")
	}

	p.Probe(context.Background(), "fe80::1")
	require.Equal(t, "[fe80::1]:22", dialed)
}
