// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32        // 32 bytes = 64 hex chars
	ResetTokenExpiry = time.Hour // 1 hour expiry
)

// PasswordReset is a pending password reset for one identity. Only the
// SHA-256 of the token is stored.
type PasswordReset struct {
	ID         ulid.ULID
	IdentityID ulid.ULID
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// NewPasswordReset creates a validated PasswordReset.
func NewPasswordReset(identityID ulid.ULID, tokenHash string, expiresAt time.Time) (*PasswordReset, error) {
	if identityID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_IDENTITY").Errorf("identity ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &PasswordReset{
		ID:         ulid.Make(),
		IdentityID: identityID,
		TokenHash:  tokenHash,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// IsExpiredAt returns true if the reset token would be expired at t.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the user; the hash is stored in the database.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashResetToken(token)

	return token, hash, nil
}

// HashResetToken computes the hex-encoded SHA-256 of a token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create stores a new password reset request.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByTokenHash retrieves a reset request by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// Consume deletes the reset request with the given ID and reports
	// whether this call removed it. Exactly one concurrent caller wins.
	Consume(ctx context.Context, id ulid.ULID) (bool, error)

	// DeleteByIdentity removes all reset requests for an identity.
	DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error

	// DeleteExpired removes all expired reset requests.
	DeleteExpired(ctx context.Context) (int64, error)
}
