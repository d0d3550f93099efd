// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field constraints for registration input.
const (
	MinNameLength     = 3
	MaxNameLength     = 50
	MaxEmailLength    = 128
	MinPasswordLength = 6
	MaxPasswordLength = 256
)

// usernameRegex matches letters, digits and the punctuation -._@+
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9\-._@+]+$`)

// Identity represents a registered account.
type Identity struct {
	ID           ulid.ULID
	Email        string
	Username     string
	FullName     string
	Major        *string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewIdentity creates a validated Identity with a fresh ID.
// The password hash is set by the credential store on creation.
func NewIdentity(fullName, username, email string) (*Identity, error) {
	fullName = strings.TrimSpace(fullName)
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := ValidateFullName(fullName); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Identity{
		ID:        ulid.Make(),
		Email:     email,
		Username:  username,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NormalizeEmail returns the comparison form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername returns the comparison form of a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateFullName checks the display name length.
func ValidateFullName(name string) error {
	if name == "" {
		return oops.Code("AUTH_INVALID_NAME").Errorf("full name is required")
	}
	if n := len([]rune(name)); n < MinNameLength || n > MaxNameLength {
		return oops.Code("AUTH_INVALID_NAME").
			With("min", MinNameLength).
			With("max", MaxNameLength).
			Errorf("full name must be between %d and %d characters", MinNameLength, MaxNameLength)
	}
	return nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinNameLength to MaxNameLength characters
// - Letters, digits and -._@+ only
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username is required")
	}
	if len(username) < MinNameLength || len(username) > MaxNameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinNameLength).
			With("max", MaxNameLength).
			Errorf("username must be between %d and %d characters", MinNameLength, MaxNameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username may contain only letters, digits and -._@+")
	}
	return nil
}

// ValidateEmail checks that email is a bare address of acceptable length.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must not exceed %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword checks password length bounds only. Composition rules
// belong to PasswordPolicy and are enforced by the credential store.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code("AUTH_INVALID_PASSWORD").Errorf("password is required")
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			With("max", MaxPasswordLength).
			Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	}
	return nil
}

// IdentityRepository manages identity persistence.
type IdentityRepository interface {
	// Create stores a new identity together with its initial roles, all
	// or nothing. Returns an error wrapping ErrDuplicateEmail or
	// ErrDuplicateUsername when a uniqueness constraint rejects the row,
	// and one wrapping ErrNotFound when a role is not defined.
	Create(ctx context.Context, identity *Identity, roles ...string) error

	// GetByID retrieves an identity by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByEmail retrieves an identity by email (case-insensitive).
	// Returns ErrNotFound if no identity has the given email.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// GetByUsername retrieves an identity by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Identity, error)

	// UpdatePassword updates only the password hash for an identity.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}

func parseULID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_INVALID_ID").With("id", s).Wrap(err)
	}
	return id, nil
}
