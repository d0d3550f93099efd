// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package web is the HTTP front end: account forms, the login cookie and
// session, and the bearer-token boundary that puts the caller's principal
// on the request context.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/internal/auth"
	"github.com/coursekeep/coursekeep/internal/observability"
)

// AuthService is the account core the handlers drive.
type AuthService interface {
	Register(ctx context.Context, fullName, userName, email, password, confirmPassword string) (*auth.Result, error)
	Authenticate(ctx context.Context, email, password string) (*auth.Result, error)
	AssignRole(ctx context.Context, userID, roleName string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) (bool, error)
	CompletePasswordReset(ctx context.Context, email, token, newPassword string) (bool, error)
	CurrentIdentity(ctx context.Context) (*auth.Identity, error)
}

// SessionManager records browser logins server-side.
type SessionManager interface {
	Start(ctx context.Context, result *auth.Result, userAgent, ipAddress string) (*auth.WebSession, string, error)
	Validate(ctx context.Context, token string) (*auth.WebSession, error)
	End(ctx context.Context, token string) error
}

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(token string) (*auth.AccessClaims, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr          string
	SecureCookies bool
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	// ThrottleRate is the sustained number of login and forgot-password
	// POSTs allowed per client per minute; ThrottleBurst is the bucket size.
	ThrottleRate  float64
	ThrottleBurst int
}

// Server serves the coursekeep web front end.
type Server struct {
	cfg      Config
	auth     AuthService
	sessions SessionManager
	tokens   TokenParser
	logger   *slog.Logger
	metrics  *observability.Metrics
	pages    *pages
	throttle *throttle
	handler  http.Handler

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records request and auth metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a Server.
func NewServer(cfg Config, authService AuthService, sessions SessionManager, tokens TokenParser, opts ...Option) (*Server, error) {
	switch {
	case authService == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("auth service is required")
	case sessions == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("session manager is required")
	case tokens == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("token parser is required")
	case cfg.ThrottleRate <= 0 || cfg.ThrottleBurst <= 0:
		return nil, oops.Code("WEB_INVALID_CONFIG").
			With("throttle_rate", cfg.ThrottleRate).
			With("throttle_burst", cfg.ThrottleBurst).
			Errorf("throttle rate and burst must be positive")
	}

	p, err := loadPages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		auth:     authService,
		sessions: sessions,
		tokens:   tokens,
		logger:   slog.Default(),
		pages:    p,
		throttle: newThrottle(cfg.ThrottleRate, cfg.ThrottleBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, s.instrument(pattern, h))
	}

	handle("GET /{$}", http.HandlerFunc(s.home))
	handle("GET /account/register", http.HandlerFunc(s.showRegister))
	handle("POST /account/register", http.HandlerFunc(s.register))
	handle("GET /account/login", http.HandlerFunc(s.showLogin))
	handle("POST /account/login", s.throttled("/account/login", http.HandlerFunc(s.login)))
	handle("POST /account/logout", http.HandlerFunc(s.logout))
	handle("GET /account/forgot-password", http.HandlerFunc(s.showForgotPassword))
	handle("POST /account/forgot-password", s.throttled("/account/forgot-password", http.HandlerFunc(s.forgotPassword)))
	handle("GET /account/reset-password", http.HandlerFunc(s.showResetPassword))
	handle("POST /account/reset-password", http.HandlerFunc(s.resetPassword))
	handle("POST /account/roles", s.requireRole(auth.RoleAdmin, http.HandlerFunc(s.assignRole)))
	handle("GET /account/me", http.HandlerFunc(s.me))

	origins := http.NewCrossOriginProtection()
	origins.SetDenyHandler(http.HandlerFunc(s.crossOriginDenied))
	return s.requestID(securityHeaders(origins.Handler(s.authenticate(mux))))
}

// crossOriginDenied answers unsafe requests that a browser sent from
// another origin.
func (s *Server) crossOriginDenied(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "cross-origin request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"))
	http.Error(w, "cross-origin request rejected", http.StatusForbidden)
}

// Start begins serving on cfg.Addr. The returned channel receives any error
// from the HTTP server after it starts and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
		}
	}
	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
