// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/coursekeep/coursekeep/internal/config"
)

// NewRootCmd creates the root command for the coursekeep CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coursekeep",
		Short: "coursekeep - accounts and course enrollment records",
		Long: `coursekeep serves account registration, login and password reset
for an online learning site, and keeps its course, enrollment and progress
records.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/coursekeep/config.yaml)")

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewRoleCmd(deps))
	cmd.AddCommand(NewClaimCmd(deps))
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewPruneCmd(deps))
	cmd.AddCommand(NewCourseCmd(deps))

	return cmd
}

// loadConfig assembles the configuration for cmd from the config file, the
// command's dotted flags and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = ""
	}
	return config.Loader{Path: path, Flags: cmd.Flags()}.Load()
}
