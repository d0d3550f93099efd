// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/coursekeep/coursekeep/internal/config"
	"github.com/coursekeep/coursekeep/internal/xdg"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration is complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.Println("Configuration is valid")
			return nil
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Long: `Write the default configuration to the --config path, or to
XDG_CONFIG_HOME/coursekeep/config.yaml when none is given. The jwt section
must be filled in before serve will start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			force, _ := cmd.Flags().GetBool("force")
			written, err := writeDefaultConfig(path, force)
			if err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", written)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}

// writeDefaultConfig writes config.Default() as YAML to path, or to the XDG
// default when path is empty, and returns the path written.
func writeDefaultConfig(path string, force bool) (string, error) {
	if path == "" {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return "", err
		}
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", oops.Code("CONFIG_EXISTS").With("path", path).Errorf("config file already exists (use --force to overwrite)")
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
		}
	}

	out, err := config.Default().YAML()
	if err != nil {
		return "", err
	}
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return "", oops.Code("CONFIG_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return path, nil
}
