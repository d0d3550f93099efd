// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import "context"

// Principal is the caller established by the transport layer from a verified
// access token.
type Principal struct {
	Subject string
	Email   string
	UserID  string
	TokenID string
	Roles   []string
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrincipalFromClaims builds a Principal from verified token claims.
func PrincipalFromClaims(c *AccessClaims) Principal {
	return Principal{
		Subject: c.Subject,
		Email:   c.Email,
		UserID:  c.UserID,
		TokenID: c.TokenID,
		Roles:   append([]string(nil), c.Roles...),
	}
}

type principalCtxKey struct{}

// ContextWithPrincipal stores the caller on ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext returns the caller stored on ctx, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}
