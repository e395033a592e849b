// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package recovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	name string
	args []string
	out  []byte
	err  error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	return f.out, f.err
}

func TestSSHExecutorBuildsArgs(t *testing.T) {
	runner := &fakeRunner{out: []byte("restarted\n")}
	exec := NewSSHExecutorWithRunner(SSHConfig{
		Host:    "100.119.246.88",
		User:    "operator",
		KeyPath: "/keys/id_ed25519",
	}, runner)

	ok, output, err := exec.Run(context.Background(), "svc restart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "restarted", output)

	assert.Equal(t, "ssh", runner.name)
	assert.Contains(t, runner.args, "operator@100.119.246.88")
	assert.Contains(t, runner.args, "svc restart")
	assert.Contains(t, runner.args, "BatchMode=yes")

	// Key flag present, adjacent to its path.
	for i, a := range runner.args {
		if a == "-i" {
			assert.Equal(t, "/keys/id_ed25519", runner.args[i+1])
		}
	}
}

func TestSSHExecutorOmitsKeyAndUserWhenUnset(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewSSHExecutorWithRunner(SSHConfig{Host: "192.168.86.48"}, runner)

	_, _, err := exec.Run(context.Background(), "uptime")
	require.NoError(t, err)

	assert.NotContains(t, runner.args, "-i")
	assert.Contains(t, runner.args, "192.168.86.48")
}

func TestSSHExecutorTimeoutIsFailedStep(t *testing.T) {
	runner := &fakeRunner{err: context.DeadlineExceeded}
	exec := NewSSHExecutorWithRunner(SSHConfig{Host: "h"}, runner)

	ok, output, err := exec.Run(context.Background(), "sleep 60")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "action timed out", output)
}
