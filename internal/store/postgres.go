// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package store owns the coursekeep PostgreSQL schema and connection pool.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const defaultRetryBackoff = 500 * time.Millisecond

// PoolConfig tunes the pgx connection pool. Zero values keep pgxpool defaults.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// ConnectRetries is how many extra pings are attempted, with exponential
	// backoff starting at RetryBackoff, before OpenPool gives up.
	ConnectRetries uint64
	RetryBackoff   time.Duration
}

// OpenPool parses dsn, builds a pgxpool and verifies connectivity with a ping.
func OpenPool(ctx context.Context, dsn string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}
	if err := ping(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", cfg.ConnectRetries+1).
			Wrap(err)
	}
	return pool, nil
}

func ping(ctx context.Context, pool *pgxpool.Pool, cfg PoolConfig) error {
	base := cfg.RetryBackoff
	if base <= 0 {
		base = defaultRetryBackoff
	}
	backoff := retry.WithMaxRetries(cfg.ConnectRetries, retry.NewExponential(base))
	//nolint:wrapcheck // wrapped by OpenPool
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
