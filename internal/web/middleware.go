// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/coursekeep/coursekeep/internal/auth"
	"github.com/coursekeep/coursekeep/internal/logging"
	"github.com/coursekeep/coursekeep/pkg/errutil"
)

const (
	headerRequestID = "X-Request-ID"
	bearerPrefix    = "bearer "
)

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// requestID tags the request context, and therefore every log line written
// while handling it, with a fresh id that is echoed to the client.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// instrument logs and measures requests for one route pattern.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		s.metrics.ObserveRequest(r.Method, route, sw.code, elapsed)
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.code,
			"duration", elapsed)
	})
}

// authenticate puts the caller's principal on the context when the request
// carries a valid access token, from the Authorization header or the login
// cookie. A cookie token also needs a live session bound to its jti, so a
// logged-out cookie stops working. Requests without either continue
// anonymously.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := accessToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := s.tokens.Parse(token)
		if err != nil {
			s.logger.DebugContext(r.Context(), "access token rejected", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if fromCookie && !s.liveSession(r, claims) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), auth.PrincipalFromClaims(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// liveSession reports whether the session cookie names an unexpired session
// issued together with the access token in claims.
func (s *Server) liveSession(r *http.Request, claims *auth.AccessClaims) bool {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		s.logger.DebugContext(r.Context(), "login cookie without session")
		return false
	}
	session, err := s.sessions.Validate(r.Context(), c.Value)
	if err != nil {
		if errutil.HasCode(err, "SESSION_VALIDATE_FAILED") {
			s.logger.WarnContext(r.Context(), "session lookup failed", errutil.Attrs(err)...)
		} else {
			s.logger.DebugContext(r.Context(), "session rejected", "error", err)
		}
		return false
	}
	if session.TokenID != claims.TokenID || session.IdentityID.String() != claims.UserID {
		s.logger.DebugContext(r.Context(), "session does not match access token",
			"session_id", session.ID.String())
		return false
	}
	return true
}

// accessToken returns the bearer token from the Authorization header or,
// failing that, the login cookie, and whether it came from the cookie.
func accessToken(r *http.Request) (token string, fromCookie bool) {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
			return strings.TrimSpace(h[len(bearerPrefix):]), false
		}
		return "", false
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value, true
	}
	return "", false
}

// requireRole answers 401 without a principal and 403 without role.
func (s *Server) requireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}
		if !p.HasRole(role) {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
