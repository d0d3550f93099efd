// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewRoleCmd creates the role command group.
func NewRoleCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage role membership",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "assign USER_ID ROLE",
		Short: "Grant a role to a user",
		Long: `Grant ROLE (Student, Instructor or Admin) to the user with id USER_ID.
This is how the first administrator is created.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleAssign(cmd, deps, args[0], args[1])
		},
	})

	return cmd
}

func runRoleAssign(cmd *cobra.Command, deps *Deps, userID, role string) error {
	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := setupLogging(cfg.Log, deps.LogWriter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := openDatabase(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer pool.Close()

	services, err := newApp(cfg, pool, logger, nil)
	if err != nil {
		return err
	}

	message, err := services.auth.AssignRole(ctx, userID, role)
	if err != nil {
		return err
	}
	if message != "" {
		return oops.Code("ROLE_ASSIGN_REJECTED").
			With("user_id", userID).
			With("role", role).
			Errorf("%s", message)
	}

	cmd.Printf("Role %s assigned to %s\n", role, userID)
	return nil
}
