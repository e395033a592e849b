// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// A vigil.yaml discovered from the working directory must reach the daemon,
// not just the global Viper: start without --config has to pick up the file
// initViper found.
func TestStartCommand_UsesDiscoveredConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := fmt.Sprintf(`networking:
  listen: 127.0.0.1:0
services:
  gateway:
    host: 127.0.0.1
storage:
  path: %s
`, filepath.Join(dir, "vigil.db"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vigil.yaml"), []byte(cfg), 0o600))
	t.Chdir(dir)

	viper.Reset()
	t.Cleanup(viper.Reset)

	// An already-cancelled context makes start wire everything, then shut
	// down immediately. A config resolution failure would surface as an
	// error instead.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"start"})

	require.NoError(t, root.ExecuteContext(ctx))
}

func TestStartCommand_NoConfigAnywhereFailsValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	viper.Reset()
	t.Cleanup(viper.Reset)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"start"})

	err := root.ExecuteContext(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least one service")
}
