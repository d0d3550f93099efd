// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package xdg provides XDG Base Directory paths for coursekeep.
package xdg

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "coursekeep"

// ConfigFileName is the name of the configuration file inside ConfigDir.
const ConfigFileName = "config.yaml"

var errNoHome = errors.New("neither the XDG variable nor HOME is set")

// ConfigDir returns the XDG config directory for coursekeep.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	return dir("XDG_CONFIG_HOME", ".config")
}

// ConfigFile returns the default configuration file path.
func ConfigFile() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, ConfigFileName), nil
}

func dir(envVar, homeRel string) (string, error) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_NO_HOME").With("env", envVar).Wrap(errNoHome)
	}
	return filepath.Join(home, homeRel, appName), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
