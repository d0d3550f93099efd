// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package postgres implements the course repositories on PostgreSQL.
package postgres
