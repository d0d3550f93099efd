// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireOops stops the test unless err carries oops metadata.
func requireOops(t testing.TB, err error) oops.OopsError {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	return oopsErr
}

// AssertErrorCode asserts the code reported by err. Nested codes win over
// outer ones, so this is the code of the deepest coded failure.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	assert.Equal(t, code, requireOops(t, err).Code(), "error: %v", err)
}

// AssertErrorContext asserts a single context key/value on err.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	ctx := requireOops(t, err).Context()
	if assert.Contains(t, ctx, key, "error context: %v", ctx) {
		assert.Equal(t, value, ctx[key], "context key %q", key)
	}
}

// AssertErrorFields asserts the code and every context pair in fields.
func AssertErrorFields(t testing.TB, err error, code string, fields map[string]any) {
	t.Helper()
	AssertErrorCode(t, err, code)
	for key, value := range fields {
		AssertErrorContext(t, err, key, value)
	}
}

// AssertErrorCodeIs asserts the code and that the sentinel target survives
// the wrapping, as callers branch on errors.Is.
func AssertErrorCodeIs(t testing.TB, err error, code string, target error) {
	t.Helper()
	AssertErrorCode(t, err, code)
	assert.ErrorIs(t, err, target)
}
