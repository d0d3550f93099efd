// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/coursekeep/coursekeep/internal/auth"
	authpg "github.com/coursekeep/coursekeep/internal/auth/postgres"
)

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions and password reset tokens",
		Long: `Delete expired web sessions and password reset tokens. serve does this
periodically; the command is for deployments that run it from cron.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd, deps)
		},
	}
}

func runPrune(cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := openDatabase(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessions, err := auth.NewSessionService(authpg.NewWebSessionRepository(pool))
	if err != nil {
		return err
	}

	sessionCount, resetCount, err := pruneExpired(ctx, sessions, authpg.NewPasswordResetRepository(pool))
	if err != nil {
		return err
	}

	cmd.Printf("Pruned %d expired sessions and %d expired password reset tokens\n", sessionCount, resetCount)
	return nil
}
