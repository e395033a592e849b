// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package recovery

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Executor runs one remediation command on the remote host and reports
// whether it succeeded along with its combined output.
type Executor interface {
	Run(ctx context.Context, command string) (ok bool, output string, err error)
}

// Runner abstracts process execution so tests can fake the ssh binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// OSRunner executes real processes.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// SSHConfig describes how to reach the remote host.
type SSHConfig struct {
	Host   string
	User   string
	KeyPath string
}

// SSHExecutor shells out to the ssh binary. The transport itself is a
// collaborator: connection handling, key negotiation, and host policy all
// live in ssh, not here.
type SSHExecutor struct {
	cfg    SSHConfig
	runner Runner
}

// NewSSHExecutor creates an executor that connects with the given config.
func NewSSHExecutor(cfg SSHConfig) *SSHExecutor {
	return &SSHExecutor{cfg: cfg, runner: OSRunner{}}
}

// NewSSHExecutorWithRunner overrides the process runner (for testing).
func NewSSHExecutorWithRunner(cfg SSHConfig, runner Runner) *SSHExecutor {
	return &SSHExecutor{cfg: cfg, runner: runner}
}

// Run executes command on the remote host. A non-zero exit is a failed
// step, not an error; err is reserved for the cases where ssh could not be
// invoked at all.
func (e *SSHExecutor) Run(ctx context.Context, command string) (bool, string, error) {
	args := e.buildArgs(command)
	out, err := e.runner.Run(ctx, "ssh", args...)
	output := strings.TrimSpace(string(out))

	if err == nil {
		return true, output, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, output, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return false, "action timed out", nil
	}
	return false, output, err
}

func (e *SSHExecutor) buildArgs(command string) []string {
	args := []string{
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=no",
		"-o", "ConnectTimeout=5",
	}
	if e.cfg.KeyPath != "" {
		args = append(args, "-i", e.cfg.KeyPath)
	}

	dest := e.cfg.Host
	if e.cfg.User != "" {
		dest = e.cfg.User + "@" + dest
	}
	return append(args, dest, command)
}
