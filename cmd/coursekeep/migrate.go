// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"log/slog"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back or inspect the embedded PostgreSQL schema migrations.
The database URL comes from database.url in the config file or the
DATABASE_URL environment variable.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (one step unless --all is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := cmd.Flags().GetBool("all")
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if all {
					cmd.Println("Rolling back all migrations...")
					if err := m.Down(); err != nil {
						return err
					}
				} else {
					cmd.Println("Rolling back one migration...")
					if err := m.Steps(-1); err != nil {
						return err
					}
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	down.Flags().Bool("all", false, "roll back every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				cmd.Printf("Version: %d", status.Version)
				if status.Name != "" {
					cmd.Printf(" (%s)", status.Name)
				}
				cmd.Println()
				cmd.Printf("Dirty:   %t\n", status.Dirty)
				cmd.Printf("Pending: %d\n", len(status.Pending))
				for _, v := range status.Pending {
					cmd.Printf("  %06d\n", v)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long: `Force the recorded schema version and clear the dirty flag. Use this
only after repairing a failed migration by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("MIGRATION_VERSION_INVALID").With("version", args[0]).Wrap(err)
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(target); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", target)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator loads the database settings, opens a migrator, runs fn and
// closes the migrator.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	return fn(m)
}

// autoMigrate applies pending migrations before serve opens its pool.
func autoMigrate(databaseURL string, factory func(string) (Migrator, error), logger *slog.Logger) error {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database schema is up to date")
	return nil
}
