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

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	pool poolIface
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool poolIface) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Create stores a new password reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_resets (id, identity_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, reset.ID.String(), reset.IdentityID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset").
			With("identity_id", reset.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, identity_id, token_hash, expires_at, created_at
		FROM password_resets
		WHERE token_hash = $1
	`, tokenHash)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return reset, nil
}

// Consume deletes the reset request and reports whether this call removed
// it. Concurrent callers race on the DELETE; exactly one sees a row.
func (r *PasswordResetRepository) Consume(ctx context.Context, id ulid.ULID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM password_resets WHERE id = $1
	`, id.String())
	if err != nil {
		return false, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "delete password_reset").
			With("id", id.String()).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// DeleteByIdentity removes all reset requests for an identity.
func (r *PasswordResetRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM password_resets WHERE identity_id = $1
	`, identityID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_BY_IDENTITY_FAILED").
			With("operation", "delete password_resets by identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	// No ErrNotFound if no rows deleted; that's a valid state.
	return nil
}

// DeleteExpired removes all expired reset requests and returns the count.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM password_resets WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans a single row into a PasswordReset.
// Callers are responsible for handling pgx.ErrNoRows.
func scanReset(row pgx.Row) (*auth.PasswordReset, error) {
	var (
		idStr         string
		identityIDStr string
		tokenHash     string
		expiresAt     time.Time
		createdAt     time.Time
	)

	err := row.Scan(&idStr, &identityIDStr, &tokenHash, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset id").
			With("id", idStr).
			Wrap(err)
	}

	identityID, err := ulid.Parse(identityIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_IDENTITY_ID").
			With("operation", "parse identity id").
			With("identity_id", identityIDStr).
			Wrap(err)
	}

	return &auth.PasswordReset{
		ID:         id,
		IdentityID: identityID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt,
		CreatedAt:  createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
