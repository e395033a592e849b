// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vigil-watch/vigil/internal/config"
	vigilerr "github.com/vigil-watch/vigil/pkg/errors"
)

// NewRootCmd creates the root vigil command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vigil",
		Short:         "Vigil — external watchdog",
		Long:          "Vigil watches heartbeating services from outside and recovers them when they stop reporting.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newStatusCmd(),
		newEventsCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return vigilerr.Errorf(vigilerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover vigil.yaml from standard locations. No config file
		// is fine — defaults and env vars still apply. Parse or permission
		// errors must surface.
		v.SetConfigName("vigil")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vigil")
		v.AddConfigPath("/etc/vigil")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return vigilerr.Errorf(vigilerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return vigilerr.Errorf(vigilerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
