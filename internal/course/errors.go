// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package course

import "errors"

var (
	// ErrNotFound is returned when a course, enrollment or progress record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyEnrolled is returned when a user is enrolled in the same course twice.
	ErrAlreadyEnrolled = errors.New("already enrolled")

	// ErrUnknownReference is returned when a user, instructor or course id does not exist.
	ErrUnknownReference = errors.New("unknown reference")
)
