// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Registered claim names written by TokenIssuer.
const (
	ClaimSubject   = "sub"
	ClaimTokenID   = "jti"
	ClaimEmail     = "email"
	ClaimUserID    = "uid"
	ClaimRoles     = "roles"
	ClaimIssuer    = "iss"
	ClaimAudience  = "aud"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
)

var reservedClaims = map[string]struct{}{
	ClaimSubject:   {},
	ClaimTokenID:   {},
	ClaimEmail:     {},
	ClaimUserID:    {},
	ClaimRoles:     {},
	ClaimIssuer:    {},
	ClaimAudience:  {},
	ClaimIssuedAt:  {},
	ClaimExpiresAt: {},
	ClaimNotBefore: {},
}

// IsReservedClaim reports whether typ is written by the issuer itself and
// therefore cannot be supplied as a custom identity claim.
func IsReservedClaim(typ string) bool {
	_, ok := reservedClaims[typ]
	return ok
}

// Claim is a key/value fact attached to an identity.
type Claim struct {
	Type  string
	Value string
}

// ClaimSet is an ordered multi-valued claim collection keyed by type.
//
// Values for the same type accumulate in first-seen order and exact
// duplicates are dropped. Nothing is ever overwritten.
type ClaimSet struct {
	order  []string
	values map[string][]string
}

// NewClaimSet returns an empty ClaimSet.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{values: make(map[string][]string)}
}

// Add appends value under typ unless the pair is already present.
// Empty types are ignored.
func (c *ClaimSet) Add(typ, value string) {
	if typ == "" {
		return
	}
	existing, ok := c.values[typ]
	if !ok {
		c.order = append(c.order, typ)
	}
	for _, v := range existing {
		if v == value {
			return
		}
	}
	c.values[typ] = append(existing, value)
}

// Merge adds every claim whose type is not reserved.
func (c *ClaimSet) Merge(claims []Claim) {
	for _, cl := range claims {
		if IsReservedClaim(cl.Type) {
			continue
		}
		c.Add(cl.Type, cl.Value)
	}
}

// Types returns claim types in insertion order.
func (c *ClaimSet) Types() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Values returns the values recorded for typ.
func (c *ClaimSet) Values(typ string) []string {
	vals := c.values[typ]
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

// Len returns the number of distinct claim types.
func (c *ClaimSet) Len() int {
	return len(c.order)
}

// ClaimRepository manages identity-level custom claims.
type ClaimRepository interface {
	// ListForIdentity returns the identity's claims in insertion order.
	ListForIdentity(ctx context.Context, identityID ulid.ULID) ([]Claim, error)

	// Add attaches a claim to an identity. Adding an existing pair is a no-op.
	Add(ctx context.Context, identityID ulid.ULID, claim Claim) error
}
