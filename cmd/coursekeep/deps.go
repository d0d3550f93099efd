// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/coursekeep/coursekeep/internal/config"
	"github.com/coursekeep/coursekeep/internal/observability"
	"github.com/coursekeep/coursekeep/internal/store"
)

// defaultPruneInterval is how often serve removes expired sessions and
// reset tokens.
const defaultPruneInterval = 15 * time.Minute

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// MigratorFactory creates a schema migrator from a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// PoolFactory opens the database pool described by the config.
	// Default: store.OpenPool
	PoolFactory func(ctx context.Context, cfg *config.Config) (Pool, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// LogWriter receives structured log output.
	// Default: os.Stderr
	LogWriter io.Writer

	// PruneInterval is the period of the background expiry sweep in serve.
	// Default: 15 minutes
	PruneInterval time.Duration
}

// withDefaults returns a copy of d with every nil field filled in.
func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, cfg *config.Config) (Pool, error) {
			return store.OpenPool(ctx, cfg.Database.URL, store.PoolConfig{
				MaxConns:       cfg.Database.MaxConns,
				ConnectRetries: cfg.Database.ConnectRetries,
			})
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, checker, logger)
		}
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	if out.PruneInterval <= 0 {
		out.PruneInterval = defaultPruneInterval
	}
	return &out
}

// Pool is the part of *pgxpool.Pool the commands use.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
