// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Haven CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "haven",
		Short: "Haven - community chat backend",
		Long: `Haven is the community chat backend: message persistence,
single-process event fan-out, and a server-sent-events stream.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
