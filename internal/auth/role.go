// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Seeded role names.
const (
	RoleStudent    = "Student"
	RoleInstructor = "Instructor"
	RoleAdmin      = "Admin"

	// DefaultRole is assigned to every identity at registration.
	DefaultRole = RoleStudent
)

// RoleRepository manages role lookup and membership. Role names are matched
// case-insensitively; results use the canonical spelling.
type RoleRepository interface {
	// Exists reports whether a role with the given name is defined.
	Exists(ctx context.Context, name string) (bool, error)

	// AddMember grants a role to an identity. Returns an error wrapping
	// ErrNotFound if the role does not exist.
	AddMember(ctx context.Context, identityID ulid.ULID, name string) error

	// IsMember reports whether the identity holds the role.
	IsMember(ctx context.Context, identityID ulid.ULID, name string) (bool, error)

	// ListForIdentity returns the identity's role names sorted by name.
	ListForIdentity(ctx context.Context, identityID ulid.ULID) ([]string, error)
}
