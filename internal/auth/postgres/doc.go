// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres
