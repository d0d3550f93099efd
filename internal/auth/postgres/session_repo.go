// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/internal/auth"
)

// WebSessionRepository implements auth.WebSessionRepository using PostgreSQL.
type WebSessionRepository struct {
	pool poolIface
}

// NewWebSessionRepository creates a new WebSessionRepository.
func NewWebSessionRepository(pool poolIface) *WebSessionRepository {
	return &WebSessionRepository{pool: pool}
}

// Create stores a new web session.
func (r *WebSessionRepository) Create(ctx context.Context, session *auth.WebSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO web_sessions (id, identity_id, token_id, token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		session.ID.String(),
		session.IdentityID.String(),
		session.TokenID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
		session.LastSeenAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert web_session").
			With("identity_id", session.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *WebSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.WebSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, identity_id, token_id, token_hash, user_agent, ip_address, expires_at, created_at, last_seen_at
		FROM web_sessions
		WHERE token_hash = $1
	`, tokenHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// UpdateLastSeen updates the LastSeenAt timestamp for a session.
func (r *WebSessionRepository) UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE web_sessions SET last_seen_at = $2 WHERE id = $1
	`, id.String(), lastSeen)
	if err != nil {
		return oops.Code("SESSION_UPDATE_LAST_SEEN_FAILED").
			With("operation", "update last_seen_at").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID.
func (r *WebSessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM web_sessions WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByIdentity removes all sessions for an identity.
func (r *WebSessionRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM web_sessions WHERE identity_id = $1
	`, identityID.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_IDENTITY_FAILED").
			With("operation", "delete web_sessions by identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *WebSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM web_sessions WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired web_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans a single row into a WebSession.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.WebSession, error) {
	var (
		idStr         string
		identityIDStr string
		session       auth.WebSession
	)

	err := row.Scan(
		&idStr,
		&identityIDStr,
		&session.TokenID,
		&session.TokenHash,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan web_session").
			Wrap(err)
	}

	if session.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	if session.IdentityID, err = ulid.Parse(identityIDStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_IDENTITY_ID").
			With("operation", "parse identity id").
			With("identity_id", identityIDStr).
			Wrap(err)
	}
	return &session, nil
}

// Compile-time interface check.
var _ auth.WebSessionRepository = (*WebSessionRepository)(nil)
