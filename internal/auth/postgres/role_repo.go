// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/internal/auth"
)

// RoleRepository implements auth.RoleRepository using PostgreSQL. Roles are
// seeded by migration and looked up by normalized_name.
type RoleRepository struct {
	pool poolIface
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool poolIface) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// normalizeRole returns the lookup form of a role name.
func normalizeRole(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Exists reports whether a role with the given name is defined.
func (r *RoleRepository) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM roles WHERE normalized_name = $1)
	`, normalizeRole(name)).Scan(&exists)
	if err != nil {
		return false, oops.Code("ROLE_EXISTS_FAILED").
			With("operation", "check role exists").
			With("role", name).
			Wrap(err)
	}
	return exists, nil
}

// AddMember grants a role to an identity. Granting a held role is a no-op.
func (r *RoleRepository) AddMember(ctx context.Context, identityID ulid.ULID, name string) error {
	return addMember(ctx, r.pool, identityID, name)
}

func addMember(ctx context.Context, q querier, identityID ulid.ULID, name string) error {
	var roleID string
	err := q.QueryRow(ctx, `
		SELECT id FROM roles WHERE normalized_name = $1
	`, normalizeRole(name)).Scan(&roleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("ROLE_NOT_FOUND").
			With("role", name).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("ROLE_ADD_MEMBER_FAILED").
			With("operation", "get role id").
			With("role", name).
			Wrap(err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO identity_roles (identity_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, identityID.String(), roleID)
	if err != nil {
		return oops.Code("ROLE_ADD_MEMBER_FAILED").
			With("operation", "insert identity_role").
			With("identity_id", identityID.String()).
			With("role", name).
			Wrap(err)
	}
	return nil
}

// IsMember reports whether the identity holds the role.
func (r *RoleRepository) IsMember(ctx context.Context, identityID ulid.ULID, name string) (bool, error) {
	var member bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM identity_roles ir
			JOIN roles r ON r.id = ir.role_id
			WHERE ir.identity_id = $1 AND r.normalized_name = $2
		)
	`, identityID.String(), normalizeRole(name)).Scan(&member)
	if err != nil {
		return false, oops.Code("ROLE_IS_MEMBER_FAILED").
			With("operation", "check role membership").
			With("identity_id", identityID.String()).
			With("role", name).
			Wrap(err)
	}
	return member, nil
}

// ListForIdentity returns the identity's role names sorted by name.
func (r *RoleRepository) ListForIdentity(ctx context.Context, identityID ulid.ULID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.name FROM identity_roles ir
		JOIN roles r ON r.id = ir.role_id
		WHERE ir.identity_id = $1
		ORDER BY r.name
	`, identityID.String())
	if err != nil {
		return nil, oops.Code("ROLE_LIST_FAILED").
			With("operation", "list roles").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, oops.Code("ROLE_LIST_FAILED").
				With("operation", "scan role row").
				Wrap(err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ROLE_LIST_FAILED").
			With("operation", "iterate roles").
			Wrap(err)
	}
	return roles, nil
}

// Compile-time interface check.
var _ auth.RoleRepository = (*RoleRepository)(nil)
