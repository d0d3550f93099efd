// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CredentialStore is the account store consumed by Service.
//
// Lookups return an error wrapping ErrNotFound when nothing matches.
// Business rejections (policy failures, taken email, rejected reset token)
// are returned as values; errors mean the store itself failed.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	FindByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// Create hashes password and persists identity with its initial roles.
	// A non-empty reasons slice or an error means nothing was stored.
	Create(ctx context.Context, identity *Identity, password string, roles ...string) (reasons []string, err error)

	// VerifyPassword checks password against the identity's hash. A nil
	// identity is checked against a fixed dummy hash and always fails, so an
	// unknown account costs the same as a wrong password.
	VerifyPassword(ctx context.Context, identity *Identity, password string) (bool, error)

	AddRole(ctx context.Context, identity *Identity, role string) error
	RoleExists(ctx context.Context, role string) (bool, error)
	IsInRole(ctx context.Context, identity *Identity, role string) (bool, error)
	GetRoles(ctx context.Context, identity *Identity) ([]string, error)
	GetClaims(ctx context.Context, identity *Identity) ([]Claim, error)

	// GeneratePasswordResetToken mints a reset token for identity. Any
	// previously issued token for the same identity stops working.
	GeneratePasswordResetToken(ctx context.Context, identity *Identity) (string, error)

	// ResetPassword applies newPassword if token is a live reset token for
	// identity. The token is consumed on success. Returns false for an
	// unknown, expired, foreign or already-used token, or a password the
	// policy rejects.
	ResetPassword(ctx context.Context, identity *Identity, token, newPassword string) (bool, error)
}

// dummyPasswordHash is verified when an identity doesn't exist so response
// time stays consistent. It will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Store implements CredentialStore on top of the repository interfaces.
type Store struct {
	identities IdentityRepository
	roles      RoleRepository
	claims     ClaimRepository
	resets     PasswordResetRepository
	hasher     PasswordHasher
	policy     PasswordPolicy
	now        func() time.Time
}

// NewStore creates a Store.
func NewStore(
	identities IdentityRepository,
	roles RoleRepository,
	claims ClaimRepository,
	resets PasswordResetRepository,
	hasher PasswordHasher,
	policy PasswordPolicy,
) (*Store, error) {
	switch {
	case identities == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("identity repository is required")
	case roles == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("role repository is required")
	case claims == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("claim repository is required")
	case resets == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("reset repository is required")
	case hasher == nil:
		return nil, oops.Code("STORE_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	return &Store{
		identities: identities,
		roles:      roles,
		claims:     claims,
		resets:     resets,
		hasher:     hasher,
		policy:     policy,
		now:        time.Now,
	}, nil
}

// FindByEmail looks up an identity by email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return s.identities.GetByEmail(ctx, email) //nolint:wrapcheck // repository errors carry codes
}

// FindByUsername looks up an identity by username.
func (s *Store) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	return s.identities.GetByUsername(ctx, username) //nolint:wrapcheck // repository errors carry codes
}

// FindByID looks up an identity by ID.
func (s *Store) FindByID(ctx context.Context, id ulid.ULID) (*Identity, error) {
	return s.identities.GetByID(ctx, id) //nolint:wrapcheck // repository errors carry codes
}

// Create applies the password policy, hashes the password and stores the
// identity along with roles. Uniqueness violations raced past the caller's
// own checks come back as reasons.
func (s *Store) Create(ctx context.Context, identity *Identity, password string, roles ...string) ([]string, error) {
	if identity == nil {
		return nil, oops.Code("STORE_CREATE_FAILED").Errorf("identity cannot be nil")
	}

	if reasons := s.policy.Check(password); len(reasons) > 0 {
		return reasons, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("STORE_CREATE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	identity.PasswordHash = hash

	now := s.now().UTC()
	if identity.ID.Compare(ulid.ULID{}) == 0 {
		identity.ID = ulid.Make()
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	err = s.identities.Create(ctx, identity, roles...)
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, ErrDuplicateEmail):
		return []string{fmt.Sprintf("Email '%s' is already taken.", identity.Email)}, nil
	case errors.Is(err, ErrDuplicateUsername):
		return []string{fmt.Sprintf("Username '%s' is already taken.", identity.Username)}, nil
	default:
		return nil, oops.Code("STORE_CREATE_FAILED").
			With("operation", "insert identity").
			With("username", identity.Username).
			Wrap(err)
	}
}

// VerifyPassword checks a password and upgrades legacy hashes on success.
func (s *Store) VerifyPassword(ctx context.Context, identity *Identity, password string) (bool, error) {
	if identity == nil {
		// Result is irrelevant; only the work matters.
		_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // timing only
		return false, nil
	}

	ok, err := s.hasher.Verify(password, identity.PasswordHash)
	if err != nil {
		return false, oops.Code("STORE_VERIFY_FAILED").
			With("operation", "verify password").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	if !ok {
		return false, nil
	}

	if s.hasher.NeedsUpgrade(identity.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			// Login succeeds regardless of whether the upgrade is persisted.
			if updErr := s.identities.UpdatePassword(ctx, identity.ID, newHash); updErr == nil {
				identity.PasswordHash = newHash
			}
		}
	}
	return true, nil
}

// AddRole grants role to identity.
func (s *Store) AddRole(ctx context.Context, identity *Identity, role string) error {
	if err := s.roles.AddMember(ctx, identity.ID, role); err != nil {
		return oops.Code("STORE_ADD_ROLE_FAILED").
			With("identity_id", identity.ID.String()).
			With("role", role).
			Wrap(err)
	}
	return nil
}

// RoleExists reports whether role is defined.
func (s *Store) RoleExists(ctx context.Context, role string) (bool, error) {
	ok, err := s.roles.Exists(ctx, role)
	if err != nil {
		return false, oops.Code("STORE_ROLE_LOOKUP_FAILED").With("role", role).Wrap(err)
	}
	return ok, nil
}

// IsInRole reports whether identity holds role.
func (s *Store) IsInRole(ctx context.Context, identity *Identity, role string) (bool, error) {
	ok, err := s.roles.IsMember(ctx, identity.ID, role)
	if err != nil {
		return false, oops.Code("STORE_ROLE_LOOKUP_FAILED").
			With("identity_id", identity.ID.String()).
			With("role", role).
			Wrap(err)
	}
	return ok, nil
}

// GetRoles lists the identity's roles.
func (s *Store) GetRoles(ctx context.Context, identity *Identity) ([]string, error) {
	roles, err := s.roles.ListForIdentity(ctx, identity.ID)
	if err != nil {
		return nil, oops.Code("STORE_ROLE_LOOKUP_FAILED").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	return roles, nil
}

// GetClaims lists the identity's custom claims.
func (s *Store) GetClaims(ctx context.Context, identity *Identity) ([]Claim, error) {
	claims, err := s.claims.ListForIdentity(ctx, identity.ID)
	if err != nil {
		return nil, oops.Code("STORE_CLAIM_LOOKUP_FAILED").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	return claims, nil
}

// AddClaim attaches a custom claim to identity. Reserved names are refused
// since the token issuer would drop them.
func (s *Store) AddClaim(ctx context.Context, identity *Identity, claim Claim) error {
	claim.Type = strings.TrimSpace(claim.Type)
	if claim.Type == "" {
		return oops.Code("CLAIM_INVALID").With("field", "type").Errorf("claim type cannot be empty")
	}
	if IsReservedClaim(claim.Type) {
		return oops.Code("CLAIM_RESERVED").With("claim_type", claim.Type).
			Errorf("claim type %q is reserved", claim.Type)
	}
	if err := s.claims.Add(ctx, identity.ID, claim); err != nil {
		return oops.Code("STORE_ADD_CLAIM_FAILED").
			With("identity_id", identity.ID.String()).
			With("claim_type", claim.Type).
			Wrap(err)
	}
	return nil
}

// GeneratePasswordResetToken revokes outstanding reset tokens for identity
// and stores the hash of a fresh one.
func (s *Store) GeneratePasswordResetToken(ctx context.Context, identity *Identity) (string, error) {
	if err := s.resets.DeleteByIdentity(ctx, identity.ID); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "revoke previous tokens").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err)
	}

	reset, err := NewPasswordReset(identity.ID, hash, s.now().UTC().Add(ResetTokenExpiry))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "NewPasswordReset").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "Create").
			Wrap(err)
	}
	return token, nil
}

// ResetPassword validates token for identity, consumes it and stores the
// new password hash.
func (s *Store) ResetPassword(ctx context.Context, identity *Identity, token, newPassword string) (bool, error) {
	if token == "" {
		return false, nil
	}

	reset, err := s.resets.GetByTokenHash(ctx, HashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "GetByTokenHash").
			Wrap(err)
	}

	if reset.IdentityID != identity.ID {
		return false, nil
	}
	if reset.IsExpiredAt(s.now()) {
		//nolint:errcheck // stale row cleanup; DeleteExpired sweeps leftovers
		s.resets.Consume(ctx, reset.ID)
		return false, nil
	}

	// Policy failures leave the token usable for another attempt.
	if reasons := s.policy.Check(newPassword); len(reasons) > 0 {
		return false, nil
	}

	hashedPassword, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	consumed, err := s.resets.Consume(ctx, reset.ID)
	if err != nil {
		return false, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "Consume").
			Wrap(err)
	}
	if !consumed {
		return false, nil
	}

	if err := s.identities.UpdatePassword(ctx, identity.ID, hashedPassword); err != nil {
		return false, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "UpdatePassword").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}
	identity.PasswordHash = hashedPassword

	//nolint:errcheck // Cleanup failure is acceptable; password was already updated
	s.resets.DeleteByIdentity(ctx, identity.ID)

	return true, nil
}

// Compile-time interface check.
var _ CredentialStore = (*Store)(nil)
