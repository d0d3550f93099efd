// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

// Package auth provides the authentication and authorization core for
// coursekeep.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewIdentity - creates an Identity with validated name, username and email
//   - NewWebSession - creates a WebSession with validated identity and expiry
//   - NewPasswordReset - creates a PasswordReset with validated identity and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
//
// # Components
//
//   - Store - the credential store: identities, password hashes, roles,
//     claims and reset tokens, backed by repository interfaces
//   - TokenIssuer - signs HS256 access tokens carrying identity and role claims
//   - Service - registration, login, role assignment and password recovery
//   - SessionService - server-side web sessions created on login
//
// Business rejections (duplicate account, wrong credentials, unknown role,
// rejected reset token) are reported as values on Result, bool or string
// returns. Errors are reserved for infrastructure failures.
package auth
