// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/internal/auth"
	authpg "github.com/coursekeep/coursekeep/internal/auth/postgres"
	"github.com/coursekeep/coursekeep/internal/config"
	"github.com/coursekeep/coursekeep/internal/course"
	coursepg "github.com/coursekeep/coursekeep/internal/course/postgres"
	"github.com/coursekeep/coursekeep/internal/logging"
	"github.com/coursekeep/coursekeep/internal/notify"
	"github.com/coursekeep/coursekeep/internal/observability"
)

const serviceName = "coursekeep"

// app holds the services built on top of one database pool.
type app struct {
	issuer   *auth.TokenIssuer
	auth     *auth.Service
	sessions *auth.SessionService
	resets   *authpg.PasswordResetRepository
}

// newApp wires the repositories, credential store, token issuer, notifier
// and services. A nil metrics disables mail delivery counting.
func newApp(cfg *config.Config, pool Pool, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	resets := authpg.NewPasswordResetRepository(pool)
	credentials, err := newCredentialStore(cfg, pool, resets)
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWT.TokenConfig())
	if err != nil {
		return nil, err
	}

	notifier, err := newNotifier(cfg.SMTP, logger)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		notifier = notify.Instrumented(notifier, metrics.RecordMail)
	}

	authService, err := auth.NewService(credentials, issuer, notifier, cfg.Reset.BaseURL, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	sessions, err := auth.NewSessionService(authpg.NewWebSessionRepository(pool))
	if err != nil {
		return nil, err
	}

	return &app{
		issuer:   issuer,
		auth:     authService,
		sessions: sessions,
		resets:   resets,
	}, nil
}

// newCredentialStore wires the credential store over the postgres
// repositories.
func newCredentialStore(cfg *config.Config, pool Pool, resets auth.PasswordResetRepository) (*auth.Store, error) {
	return auth.NewStore(
		authpg.NewIdentityRepository(pool),
		authpg.NewRoleRepository(pool),
		authpg.NewClaimRepository(pool),
		resets,
		auth.NewArgon2idHasher(),
		cfg.Password,
	)
}

// newNotifier sends through SMTP when a host is configured and logs
// messages otherwise.
func newNotifier(cfg config.SMTPConfig, logger *slog.Logger) (notify.Notifier, error) {
	if cfg.Host == "" {
		logger.Warn("smtp.host is not set, outbound mail will only be logged")
		return notify.NewLogNotifier(logger), nil
	}
	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		StartTLS: cfg.StartTLS,
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// newCourseService wires the course records service.
func newCourseService(pool Pool, logger *slog.Logger) (*course.Service, error) {
	return course.NewService(
		coursepg.NewCourseRepository(pool),
		coursepg.NewEnrollmentRepository(pool),
		coursepg.NewProgressRepository(pool),
		logger,
	)
}

// pruneExpired removes expired sessions and reset tokens.
func pruneExpired(ctx context.Context, sessions *auth.SessionService, resets auth.PasswordResetRepository) (sessionCount, resetCount int64, err error) {
	sessionCount, err = sessions.Prune(ctx)
	if err != nil {
		return 0, 0, err
	}
	resetCount, err = resets.DeleteExpired(ctx)
	if err != nil {
		return sessionCount, 0, err
	}
	return sessionCount, resetCount, nil
}

// setupLogging builds the process logger from the log section and makes it
// the slog default.
func setupLogging(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.Setup(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Format,
		Level:   cfg.Level,
	}, w)
	if err != nil {
		return nil, oops.Code("LOGGING_SETUP_FAILED").Wrap(err)
	}
	slog.SetDefault(logger)
	return logger, nil
}

// openDatabase opens the pool for a maintenance command.
func openDatabase(ctx context.Context, cfg *config.Config, deps *Deps) (Pool, error) {
	pool, err := deps.PoolFactory(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open pool").Wrap(err)
	}
	return pool, nil
}
