// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package config loads coursekeep settings from a YAML file, command-line
// flags and a small set of environment variables.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/coursekeep/coursekeep/internal/auth"
	"github.com/coursekeep/coursekeep/internal/xdg"
)

// Environment variables consulted when the file leaves a secret empty.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvSigningKey  = "COURSEKEEP_JWT_SIGNING_KEY"
	EnvSMTPPass    = "COURSEKEEP_SMTP_PASSWORD"
)

const redacted = "[REDACTED]"

// Config is the full coursekeep configuration.
type Config struct {
	HTTP     HTTPConfig          `koanf:"http" yaml:"http"`
	Metrics  MetricsConfig       `koanf:"metrics" yaml:"metrics"`
	Log      LogConfig           `koanf:"log" yaml:"log"`
	Database DatabaseConfig      `koanf:"database" yaml:"database"`
	JWT      JWTConfig           `koanf:"jwt" yaml:"jwt"`
	SMTP     SMTPConfig          `koanf:"smtp" yaml:"smtp"`
	Reset    ResetConfig         `koanf:"reset" yaml:"reset"`
	Password auth.PasswordPolicy `koanf:"password" yaml:"password"`
}

// HTTPConfig configures the web front end.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr"`
	SecureCookies   bool          `koanf:"secure_cookies" yaml:"secure_cookies"`
	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	// ThrottleRate is the sustained number of login and forgot-password
	// POSTs allowed per client IP per minute.
	ThrottleRate  float64 `koanf:"throttle_rate" yaml:"throttle_rate"`
	ThrottleBurst int     `koanf:"throttle_burst" yaml:"throttle_burst"`
}

// MetricsConfig configures the metrics and health server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL      string `koanf:"url" yaml:"url"`
	MaxConns int32  `koanf:"max_conns" yaml:"max_conns"`
	// AutoMigrate applies pending migrations when serve starts.
	AutoMigrate bool `koanf:"auto_migrate" yaml:"auto_migrate"`
	// ConnectRetries is how many extra connection attempts serve makes.
	ConnectRetries uint64 `koanf:"connect_retries" yaml:"connect_retries"`
}

// JWTConfig configures access token signing.
type JWTConfig struct {
	SigningKey   string `koanf:"signing_key" yaml:"signing_key"`
	Issuer       string `koanf:"issuer" yaml:"issuer"`
	Audience     string `koanf:"audience" yaml:"audience"`
	DurationDays int    `koanf:"duration_days" yaml:"duration_days"`
}

// TokenConfig converts the section to the token issuer's configuration.
func (c JWTConfig) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		SigningKey:   []byte(c.SigningKey),
		Issuer:       c.Issuer,
		Audience:     c.Audience,
		DurationDays: c.DurationDays,
	}
}

// SMTPConfig configures outbound mail. An empty Host logs mail instead of sending it.
type SMTPConfig struct {
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
	From     string `koanf:"from" yaml:"from"`
	StartTLS bool   `koanf:"starttls" yaml:"starttls"`
}

// ResetConfig configures password reset links.
type ResetConfig struct {
	// BaseURL is the absolute URL of the reset-password page.
	BaseURL string `koanf:"base_url" yaml:"base_url"`
}

// Default returns the configuration used for keys absent from every source.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:8080",
			SecureCookies:   true,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ThrottleRate:    10,
			ThrottleBurst:   5,
		},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:      LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{MaxConns: 10, AutoMigrate: true, ConnectRetries: 5},
		JWT:      JWTConfig{DurationDays: 7},
		SMTP:     SMTPConfig{Port: 587, StartTLS: true},
		Reset:    ResetConfig{BaseURL: "http://127.0.0.1:8080/account/reset-password"},
		Password: auth.DefaultPasswordPolicy(),
	}
}

// Loader assembles a Config.
type Loader struct {
	// Path is the config file. Empty means the XDG default, which may be absent.
	Path string
	// Flags, when set, override file values. Flag names use dashes for
	// underscores and dots between sections, e.g. "http.addr".
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load reads the sources in order: defaults, file, flags, environment fallbacks.
func (l Loader) Load() (*Config, error) {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")

	path, explicit := l.Path, l.Path != ""
	if !explicit {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			path = ""
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("path", path).
					Wrap(err)
			}
		}
	}

	if l.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(l.Flags, ".", k, flagKey(l.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = getenv(EnvDatabaseURL)
	}
	if cfg.JWT.SigningKey == "" {
		cfg.JWT.SigningKey = getenv(EnvSigningKey)
	}
	if cfg.SMTP.Password == "" {
		cfg.SMTP.Password = getenv(EnvSMTPPass)
	}
	return &cfg, nil
}

// flagKey maps "http.secure-cookies" to "http.secure_cookies". Flags without
// a section (like "config") are not configuration keys, and flags the user
// did not set never override the file or the defaults.
func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key := flagToKey(f.Name)
		if key == "" || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func flagToKey(name string) string {
	section, rest, ok := strings.Cut(name, ".")
	if !ok {
		return ""
	}
	return section + "." + strings.ReplaceAll(rest, "-", "_")
}

// Validate checks everything serve needs.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if err := c.JWT.TokenConfig().Validate(); err != nil {
		field := "jwt"
		if f, ok := oops.AsOops(err); ok {
			if v, ok := f.Context()["field"].(string); ok {
				field = "jwt." + v
			}
		}
		return invalid(field, err.Error())
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "log format must be 'json' or 'text', got "+c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http address is required")
	}
	if c.HTTP.ThrottleRate <= 0 || c.HTTP.ThrottleBurst <= 0 {
		return invalid("http.throttle_rate", "throttle rate and burst must be positive")
	}
	if c.Password.MinLength < auth.MinPasswordLength {
		return invalid("password.min_length", "minimum password length is below the allowed floor")
	}
	u, err := url.Parse(c.Reset.BaseURL)
	if err != nil || !u.IsAbs() {
		return invalid("reset.base_url", "reset base url must be absolute")
	}
	return nil
}

// ValidateDatabase checks the database section alone; migrate needs nothing else.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database url is required (set database.url or "+EnvDatabaseURL+")")
	}
	return nil
}

func invalid(field, msg string) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf("%s", msg)
}

// Redacted returns a copy with secrets masked.
func (c Config) Redacted() Config {
	out := c
	if out.JWT.SigningKey != "" {
		out.JWT.SigningKey = redacted
	}
	if out.SMTP.Password != "" {
		out.SMTP.Password = redacted
	}
	if u, err := url.Parse(out.Database.URL); err == nil && u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), redacted)
			out.Database.URL = u.String()
		}
	}
	return out
}

// YAML renders the redacted configuration.
func (c Config) YAML() ([]byte, error) {
	out, err := yamlv3.Marshal(c.Redacted())
	if err != nil {
		return nil, oops.Code("CONFIG_MARSHAL_FAILED").Wrap(err)
	}
	return out, nil
}
