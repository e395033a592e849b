// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// Config is the top-level Vigil configuration.
type Config struct {
	Networking NetworkingConfig         `mapstructure:"networking"`
	Monitor    MonitorConfig            `mapstructure:"monitor"`
	Services   map[string]ServiceConfig `mapstructure:"services"`
	Remote     RemoteConfig             `mapstructure:"remote"`
	Alerts     AlertsConfig             `mapstructure:"alerts"`
	Recovery   RecoveryConfig           `mapstructure:"recovery"`
	Storage    StorageConfig            `mapstructure:"storage"`
}

// NetworkingConfig controls how Vigil listens for heartbeats.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// MonitorConfig controls the monitoring loop.
type MonitorConfig struct {
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	AnomalyZThreshold float64       `mapstructure:"anomaly_z_threshold"`
}

// ServiceConfig describes one monitored service. The set of configured
// services is closed; heartbeats from any other source are rejected.
type ServiceConfig struct {
	Host          string `mapstructure:"host"`
	DefaultTarget string `mapstructure:"default_target"`
}

// RemoteConfig holds the SSH connection used by recovery actions and the
// hardware address used for Wake-on-LAN.
type RemoteConfig struct {
	Host           string        `mapstructure:"host"`
	User           string        `mapstructure:"user"`
	SSHKey         string        `mapstructure:"ssh_key"`
	MACAddress     string        `mapstructure:"mac_address"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// AlertsConfig configures the notification channels.
type AlertsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	SMS      SMSConfig      `mapstructure:"sms"`
}

// TelegramConfig is the primary channel.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID string `mapstructure:"chat_id"`
}

// SMSConfig is the optional secondary channel, used only for critical alerts.
type SMSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
}

// RecoveryConfig maps recovery targets to their ordered action lists.
type RecoveryConfig struct {
	Plans map[string][]ActionConfig `mapstructure:"plans"`
}

// ActionConfig is one remediation step in a recovery plan.
type ActionConfig struct {
	Name    string `mapstructure:"name"`
	Command string `mapstructure:"command"`
}

// StorageConfig selects where the event log lives.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults installs configuration defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "0.0.0.0:8765")
	v.SetDefault("monitor.heartbeat_timeout", "180s")
	v.SetDefault("monitor.tick_interval", "60s")
	v.SetDefault("monitor.anomaly_z_threshold", 2.0)
	v.SetDefault("remote.command_timeout", "15s")
	v.SetDefault("storage.path", "vigil.db")
}

// SetupEnv binds VIGIL_-prefixed environment variables so that e.g.
// VIGIL_MONITOR_HEARTBEAT_TIMEOUT overrides monitor.heartbeat_timeout.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, vigilerr.Errorf(vigilerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, vigilerr.Errorf(vigilerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Networking.Listen == "" {
		return vigilerr.New(vigilerr.CodeConfigValidateInvalidValue, "networking.listen must not be empty")
	}
	if c.Monitor.HeartbeatTimeout <= 0 {
		return vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"monitor.heartbeat_timeout must be positive, got %s", c.Monitor.HeartbeatTimeout)
	}
	if c.Monitor.TickInterval <= 0 {
		return vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"monitor.tick_interval must be positive, got %s", c.Monitor.TickInterval)
	}
	if c.Monitor.AnomalyZThreshold <= 0 {
		return vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"monitor.anomaly_z_threshold must be positive, got %g", c.Monitor.AnomalyZThreshold)
	}
	if len(c.Services) == 0 {
		return vigilerr.New(vigilerr.CodeConfigValidateInvalidValue, "at least one service must be configured")
	}
	if c.Remote.CommandTimeout <= 0 {
		return vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
			"remote.command_timeout must be positive, got %s", c.Remote.CommandTimeout)
	}
	for name, svc := range c.Services {
		if svc.DefaultTarget == "" {
			continue
		}
		if _, ok := c.Recovery.Plans[svc.DefaultTarget]; !ok {
			return vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
				"service %s references recovery target %s which has no plan", name, svc.DefaultTarget)
		}
	}
	for target, actions := range c.Recovery.Plans {
		if len(actions) == 0 {
			return vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
				"recovery plan for %s has no actions", target)
		}
		for _, a := range actions {
			if a.Command == "" {
				return vigilerr.Errorf(vigilerr.CodeConfigValidateInvalidValue,
					"recovery plan for %s has an action with no command", target)
			}
		}
	}
	if c.Alerts.SMS.Enabled {
		if c.Alerts.SMS.AccountSID == "" || c.Alerts.SMS.AuthToken == "" ||
			c.Alerts.SMS.From == "" || c.Alerts.SMS.To == "" {
			return vigilerr.New(vigilerr.CodeConfigValidateInvalidValue,
				"alerts.sms requires account_sid, auth_token, from, and to when enabled")
		}
	}
	return nil
}

// ServiceNames returns the configured service identifiers.
func (c *Config) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	return names
}
