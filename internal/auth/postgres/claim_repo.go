// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/coursekeep/coursekeep/internal/auth"
)

// ClaimRepository implements auth.ClaimRepository using PostgreSQL.
type ClaimRepository struct {
	pool poolIface
}

// NewClaimRepository creates a new ClaimRepository.
func NewClaimRepository(pool poolIface) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// ListForIdentity returns the identity's claims in insertion order.
func (r *ClaimRepository) ListForIdentity(ctx context.Context, identityID ulid.ULID) ([]auth.Claim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT claim_type, claim_value FROM identity_claims
		WHERE identity_id = $1
		ORDER BY id
	`, identityID.String())
	if err != nil {
		return nil, oops.Code("CLAIM_LIST_FAILED").
			With("operation", "list claims").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var claims []auth.Claim
	for rows.Next() {
		var c auth.Claim
		if err := rows.Scan(&c.Type, &c.Value); err != nil {
			return nil, oops.Code("CLAIM_LIST_FAILED").
				With("operation", "scan claim row").
				Wrap(err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CLAIM_LIST_FAILED").
			With("operation", "iterate claims").
			Wrap(err)
	}
	return claims, nil
}

// Add attaches a claim to an identity. Adding an existing pair is a no-op.
func (r *ClaimRepository) Add(ctx context.Context, identityID ulid.ULID, claim auth.Claim) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identity_claims (identity_id, claim_type, claim_value)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, identityID.String(), claim.Type, claim.Value)
	if err != nil {
		return oops.Code("CLAIM_ADD_FAILED").
			With("operation", "insert identity_claim").
			With("identity_id", identityID.String()).
			With("claim_type", claim.Type).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.ClaimRepository = (*ClaimRepository)(nil)
