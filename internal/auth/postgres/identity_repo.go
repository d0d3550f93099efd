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

// Unique constraints on the identities table.
const (
	identityEmailConstraint    = "identities_email_key"
	identityUsernameConstraint = "identities_username_key"
)

const identityColumns = `id, email, username, full_name, major, password_hash, created_at, updated_at`

// IdentityRepository implements auth.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool poolIface
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(pool poolIface) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Create stores a new identity and grants it roles in one transaction.
// Uniqueness is enforced by the database on the normalized email and
// username. If any role cannot be granted nothing is stored.
func (r *IdentityRepository) Create(ctx context.Context, identity *auth.Identity, roles ...string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op
	}()

	if err := insertIdentity(ctx, tx, identity); err != nil {
		return err
	}
	for _, role := range roles {
		if err := addMember(ctx, tx, identity.ID, role); err != nil {
			return oops.Code("IDENTITY_CREATE_FAILED").
				With("operation", "grant initial role").
				With("role", role).
				Wrap(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

func insertIdentity(ctx context.Context, q querier, identity *auth.Identity) error {
	_, err := q.Exec(ctx, `
		INSERT INTO identities (
			id, email, normalized_email, username, normalized_username,
			full_name, major, password_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		identity.ID.String(),
		identity.Email,
		auth.NormalizeEmail(identity.Email),
		identity.Username,
		auth.NormalizeUsername(identity.Username),
		identity.FullName,
		identity.Major,
		identity.PasswordHash,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case identityEmailConstraint:
			return oops.Code("IDENTITY_DUPLICATE_EMAIL").
				With("email", identity.Email).
				Wrap(auth.ErrDuplicateEmail)
		case identityUsernameConstraint:
			return oops.Code("IDENTITY_DUPLICATE_USERNAME").
				With("username", identity.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
	}
	return oops.Code("IDENTITY_CREATE_FAILED").
		With("operation", "insert identity").
		With("username", identity.Username).
		Wrap(err)
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id.String())
	return r.get(row, "id", id.String())
}

// GetByEmail retrieves an identity by email, ignoring case.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE normalized_email = $1`,
		auth.NormalizeEmail(email))
	return r.get(row, "email", email)
}

// GetByUsername retrieves an identity by username, ignoring case.
func (r *IdentityRepository) GetByUsername(ctx context.Context, username string) (*auth.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE normalized_username = $1`,
		auth.NormalizeUsername(username))
	return r.get(row, "username", username)
}

// UpdatePassword replaces the password hash and bumps updated_at.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, id.String(), passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *IdentityRepository) get(row pgx.Row, key, value string) (*auth.Identity, error) {
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With(key, value).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_FAILED").
			With("operation", "get identity by "+key).
			With(key, value).
			Wrap(err)
	}
	return identity, nil
}

// scanIdentity scans a single row into an Identity.
// Callers are responsible for handling pgx.ErrNoRows.
func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		idStr     string
		identity  auth.Identity
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&idStr,
		&identity.Email,
		&identity.Username,
		&identity.FullName,
		&identity.Major,
		&identity.PasswordHash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("IDENTITY_SCAN_FAILED").
			With("operation", "scan identity").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("IDENTITY_INVALID_ID").
			With("operation", "parse identity id").
			With("id", idStr).
			Wrap(err)
	}
	identity.ID = id
	identity.CreatedAt = createdAt
	identity.UpdatedAt = updatedAt
	return &identity, nil
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)
