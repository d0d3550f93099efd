// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package course keeps course, enrollment and progress records.
//
// These are plain records with referential integrity. Progress is stored as
// reported; nothing here computes it.
package course
