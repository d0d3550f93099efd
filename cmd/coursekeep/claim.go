// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/coursekeep/coursekeep/internal/auth"
	authpg "github.com/coursekeep/coursekeep/internal/auth/postgres"
)

// NewClaimCmd creates the claim command group.
func NewClaimCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Manage custom identity claims",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add USER_ID TYPE VALUE",
		Short: "Attach a claim to a user",
		Long: `Attach a custom claim to the user with id USER_ID. Claims are copied into
the access token at the user's next sign-in. Registered names such as sub,
email, roles and exp are refused.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentity(cmd, deps, args[0], func(store *auth.Store, identity *auth.Identity) error {
				claim := auth.Claim{Type: args[1], Value: args[2]}
				if err := store.AddClaim(cmd.Context(), identity, claim); err != nil {
					return err
				}
				cmd.Printf("Claim %s=%s added to %s\n", args[1], args[2], identity.Username)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list USER_ID",
		Short: "List a user's custom claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentity(cmd, deps, args[0], func(store *auth.Store, identity *auth.Identity) error {
				claims, err := store.GetClaims(cmd.Context(), identity)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TYPE\tVALUE")
				for _, c := range claims {
					fmt.Fprintf(w, "%s\t%s\n", c.Type, c.Value)
				}
				return w.Flush()
			})
		},
	})

	return cmd
}

// withIdentity opens the database, looks up the user with id rawID and runs
// fn with the credential store.
func withIdentity(cmd *cobra.Command, deps *Deps, rawID string, fn func(*auth.Store, *auth.Identity) error) error {
	id, err := parseID("user", rawID)
	if err != nil {
		return err
	}

	deps = deps.withDefaults()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	pool, err := openDatabase(cmd.Context(), cfg, deps)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := newCredentialStore(cfg, pool, authpg.NewPasswordResetRepository(pool))
	if err != nil {
		return err
	}
	identity, err := store.FindByID(cmd.Context(), id)
	if err != nil {
		return oops.With("user_id", rawID).Wrap(err)
	}
	return fn(store, identity)
}
