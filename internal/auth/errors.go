// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Uniqueness violations reported by IdentityRepository.Create.
var (
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already registered")
)

// ErrConfiguration marks a fatal startup misconfiguration, such as a missing
// or malformed token signing key.
var ErrConfiguration = errors.New("invalid configuration")
