// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// defaultConfigDoc mirrors the config schema with yaml tags so the generated
// file round-trips through Viper unchanged.
type defaultConfigDoc struct {
	Networking struct {
		Listen      string   `yaml:"listen"`
		CORSOrigins []string `yaml:"cors_origins,omitempty"`
	} `yaml:"networking"`
	Monitor struct {
		HeartbeatTimeout  string  `yaml:"heartbeat_timeout"`
		TickInterval      string  `yaml:"tick_interval"`
		AnomalyZThreshold float64 `yaml:"anomaly_z_threshold"`
	} `yaml:"monitor"`
	Services map[string]struct {
		Host          string `yaml:"host"`
		DefaultTarget string `yaml:"default_target,omitempty"`
	} `yaml:"services"`
	Remote struct {
		Host           string `yaml:"host"`
		User           string `yaml:"user"`
		SSHKey         string `yaml:"ssh_key,omitempty"`
		MACAddress     string `yaml:"mac_address,omitempty"`
		CommandTimeout string `yaml:"command_timeout"`
	} `yaml:"remote"`
	Alerts struct {
		Telegram struct {
			Token  string `yaml:"token"`
			ChatID string `yaml:"chat_id"`
		} `yaml:"telegram"`
		SMS struct {
			Enabled    bool   `yaml:"enabled"`
			AccountSID string `yaml:"account_sid,omitempty"`
			AuthToken  string `yaml:"auth_token,omitempty"`
			From       string `yaml:"from,omitempty"`
			To         string `yaml:"to,omitempty"`
		} `yaml:"sms"`
	} `yaml:"alerts"`
	Recovery struct {
		Plans map[string][]struct {
			Name    string `yaml:"name"`
			Command string `yaml:"command"`
		} `yaml:"plans"`
	} `yaml:"recovery"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
}

// GenerateDefaultConfig renders the starter vigil.yaml.
func GenerateDefaultConfig() ([]byte, error) {
	var doc defaultConfigDoc
	doc.Networking.Listen = "0.0.0.0:8765"
	doc.Monitor.HeartbeatTimeout = "180s"
	doc.Monitor.TickInterval = "60s"
	doc.Monitor.AnomalyZThreshold = 2.0
	doc.Services = map[string]struct {
		Host          string `yaml:"host"`
		DefaultTarget string `yaml:"default_target,omitempty"`
	}{
		"gateway": {Host: "192.168.1.10", DefaultTarget: "gateway"},
	}
	doc.Remote.Host = "192.168.1.10"
	doc.Remote.User = "admin"
	doc.Remote.CommandTimeout = "15s"
	doc.Recovery.Plans = map[string][]struct {
		Name    string `yaml:"name"`
		Command string `yaml:"command"`
	}{
		"gateway": {
			{Name: "graceful-restart", Command: "systemctl --user restart gateway"},
		},
	}
	doc.Storage.Path = "vigil.db"

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, vigilerr.Wrap(err, vigilerr.CodeCLISetupFailure, "rendering default config")
	}
	header := []byte("# Vigil configuration — generated by vigil init\n\n")
	return append(header, out...), nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Write a commented vigil.yaml with defaults for one monitored service.
Edit the generated file to add your services, remote host, and alert channels.`,
		RunE: runInit,
	}

	cmd.Flags().String("path", "", "where to write the config (default ~/.config/vigil/vigil.yaml)")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return vigilerr.Wrap(err, vigilerr.CodeCLISetupFailure, "resolving home directory")
		}
		path = filepath.Join(home, ".config", "vigil", "vigil.yaml")
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return vigilerr.Errorf(vigilerr.CodeCLISetupFailure,
				"config file already exists at %s; use --force to overwrite", path)
		}
	}

	data, err := GenerateDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeCLISetupFailure, "creating config directory %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return vigilerr.Wrapf(err, vigilerr.CodeCLISetupFailure, "writing config to %s", path)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\nEdit it, then run: vigil start\n", path)
	return nil
}
