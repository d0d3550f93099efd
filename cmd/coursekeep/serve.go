// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/coursekeep/coursekeep/internal/auth"
	"github.com/coursekeep/coursekeep/internal/config"
	"github.com/coursekeep/coursekeep/internal/observability"
	"github.com/coursekeep/coursekeep/internal/web"
	"github.com/coursekeep/coursekeep/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account web server",
		Long: `Start the account web server and the metrics/health endpoint.
Pending migrations are applied first unless database.auto_migrate is false.
Expired sessions and reset tokens are pruned in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, deps)
		},
	}

	cmd.Flags().String("http.addr", defaults.HTTP.Addr, "web listen address")
	cmd.Flags().Bool("http.secure-cookies", defaults.HTTP.SecureCookies, "mark login cookies Secure (disable only for plain-HTTP development)")
	cmd.Flags().String("metrics.addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log.format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log.level", defaults.Log.Level, "log level (debug, info, warn or error)")
	cmd.Flags().Bool("database.auto-migrate", defaults.Database.AutoMigrate, "apply pending migrations on startup")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies and blocks
// until a signal arrives, ctx is cancelled or a server fails. If deps is
// nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := setupLogging(cfg.Log, deps.LogWriter)
	if err != nil {
		return err
	}

	logger.Info("starting coursekeep",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"log_format", cfg.Log.Format,
	)

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	pool, err := deps.PoolFactory(ctx, cfg)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open pool").Wrap(err)
	}
	defer pool.Close()

	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, pool.Ping, logger)
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("SERVE_START_FAILED").With("server", "observability").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	webServer, err := startWeb(ctx, cancel, cfg, pool, logger, metrics, deps.PruneInterval)
	if err != nil {
		stopServers(logger, cfg.HTTP.ShutdownTimeout, obsServer)
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Printf("coursekeep listening on %s\n", webServer.Addr())
	logger.Info("coursekeep ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	stopServers(logger, cfg.HTTP.ShutdownTimeout, webServer, obsServer)
	logger.Info("shutdown complete")
	return nil
}

// startWeb builds the services, starts the web server and launches the
// background pruner. Server errors cancel ctx.
func startWeb(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	pool Pool,
	logger *slog.Logger,
	metrics *observability.Metrics,
	pruneInterval time.Duration,
) (*web.Server, error) {
	services, err := newApp(cfg, pool, logger, metrics)
	if err != nil {
		return nil, err
	}

	server, err := web.NewServer(web.Config{
		Addr:          cfg.HTTP.Addr,
		SecureCookies: cfg.HTTP.SecureCookies,
		ReadTimeout:   cfg.HTTP.ReadTimeout,
		WriteTimeout:  cfg.HTTP.WriteTimeout,
		ThrottleRate:  cfg.HTTP.ThrottleRate,
		ThrottleBurst: cfg.HTTP.ThrottleBurst,
	}, services.auth, services.sessions, services.issuer,
		web.WithLogger(logger),
		web.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	errCh, err := server.Start()
	if err != nil {
		return nil, oops.Code("SERVE_START_FAILED").With("server", "web").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, errCh, "web")
	go runPruner(ctx, pruneInterval, services.sessions, services.resets, logger)

	return server, nil
}

// stopper is satisfied by the web and observability servers.
type stopper interface {
	Stop(ctx context.Context) error
}

// stopServers stops each non-nil server within timeout.
func stopServers(logger *slog.Logger, timeout time.Duration, servers ...stopper) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	for _, s := range servers {
		if s == nil {
			continue
		}
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
	}
}

// runPruner removes expired sessions and reset tokens every interval until
// ctx is done.
func runPruner(ctx context.Context, interval time.Duration, sessions *auth.SessionService, resets auth.PasswordResetRepository, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessionCount, resetCount, err := pruneExpired(ctx, sessions, resets)
			if err != nil {
				errutil.LogError(logger, "prune expired records failed", err)
				continue
			}
			if sessionCount > 0 || resetCount > 0 {
				logger.Info("pruned expired records",
					"sessions", sessionCount,
					"password_resets", resetCount)
			}
		}
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
