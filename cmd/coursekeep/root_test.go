// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekeep/coursekeep/internal/config"
	"github.com/coursekeep/coursekeep/internal/xdg"
	"github.com/coursekeep/coursekeep/pkg/errutil"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	want := []string{"serve", "migrate", "role", "claim", "config", "prune", "course"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestServeCmd_FlagDefaults(t *testing.T) {
	cmd := NewServeCmd(nil)

	tests := []struct {
		flag string
		want string
	}{
		{"http.addr", "127.0.0.1:8080"},
		{"http.secure-cookies", "true"},
		{"metrics.addr", "127.0.0.1:9100"},
		{"log.format", "json"},
		{"log.level", "info"},
		{"database.auto-migrate", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.want, f.DefValue)
		})
	}
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	out, err := execute(t, nil, "config", "show", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "https://coursekeep.test")
	assert.NotContains(t, out, "0123456789abcdef0123456789abcdef")
	assert.NotContains(t, out, "coursekeep:secret@")
}

func TestConfigValidate(t *testing.T) {
	t.Run("complete config", func(t *testing.T) {
		path := writeConfig(t, testConfigYAML)
		out, err := execute(t, nil, "config", "validate", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid")
	})

	t.Run("missing jwt settings", func(t *testing.T) {
		path := writeConfig(t, "database:\n  url: postgres://db/coursekeep\n")
		_, err := execute(t, nil, "config", "validate", "--config", path)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "field", "jwt.signing_key")
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := execute(t, nil, "config", "validate", "--config", "/nonexistent/coursekeep.yaml")
		errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
	})
}

func TestConfigInit(t *testing.T) {
	t.Run("writes defaults to the given path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.yaml")

		out, err := execute(t, nil, "config", "init", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, path)

		cfg, err := config.Loader{Path: path}.Load()
		require.NoError(t, err)
		assert.Equal(t, config.Default().HTTP, cfg.HTTP)

		_, err = execute(t, nil, "config", "init", "--config", path)
		errutil.AssertErrorCode(t, err, "CONFIG_EXISTS")

		_, err = execute(t, nil, "config", "init", "--config", path, "--force")
		require.NoError(t, err)
	})

	t.Run("defaults to the XDG location", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		_, err := execute(t, nil, "config", "init")
		require.NoError(t, err)

		path, err := xdg.ConfigFile()
		require.NoError(t, err)
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})
}
