// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// SessionService tracks browser logins server-side. A session binds an
// opaque cookie token to the access token handed out at login.
type SessionService struct {
	sessions WebSessionRepository
	now      func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions WebSessionRepository) (*SessionService, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_INVALID_DEPENDENCY").Errorf("session repository is required")
	}
	return &SessionService{sessions: sessions, now: time.Now}, nil
}

// Start records a session for a successful login and returns it with the
// plaintext session token.
func (s *SessionService) Start(ctx context.Context, result *Result, userAgent, ipAddress string) (*WebSession, string, error) {
	if result == nil || !result.IsAuthenticated {
		return nil, "", oops.Code("SESSION_START_FAILED").Errorf("session requires an authenticated result")
	}
	identityID, err := parseULID(result.UserID)
	if err != nil {
		return nil, "", oops.Code("SESSION_START_FAILED").
			With("user_id", result.UserID).
			Wrap(err)
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_START_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	expiresAt := s.now().UTC().Add(SessionTokenExpiry)
	session, err := NewWebSession(identityID, result.TokenID, tokenHash, userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, "", oops.Code("SESSION_START_FAILED").
			With("operation", "create web session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}
	return session, token, nil
}

// Validate returns the live session for token and refreshes its LastSeenAt.
func (s *SessionService) Validate(ctx context.Context, token string) (*WebSession, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	now := s.now()
	if session.IsExpiredAt(now) {
		return nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	_ = s.sessions.UpdateLastSeen(ctx, session.ID, now) //nolint:errcheck // Best effort, validation succeeds regardless
	return session, nil
}

// End deletes the session for token. An unknown token is not an error.
func (s *SessionService) End(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return nil
}

// Prune removes expired sessions and returns how many were deleted.
func (s *SessionService) Prune(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").Wrap(err)
	}
	return n, nil
}
