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

// Session token configuration.
const (
	SessionTokenBytes  = 32               // 32 bytes = 64 hex chars
	SessionTokenExpiry = 30 * time.Minute // matches the access-token cookie lifetime
)

// WebSession is the server-side record of a browser login. It remembers
// which access token (by jti) was handed to the client.
type WebSession struct {
	ID         ulid.ULID
	IdentityID ulid.ULID
	TokenID    string
	TokenHash  string
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// NewWebSession creates a validated WebSession instance.
// UserAgent and IPAddress are optional and may be empty.
func NewWebSession(identityID ulid.ULID, tokenID, tokenHash, userAgent, ipAddress string, expiresAt time.Time) (*WebSession, error) {
	if identityID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_IDENTITY").Errorf("identity ID cannot be zero")
	}
	if tokenID == "" {
		return nil, oops.Code("SESSION_INVALID_TOKEN_ID").Errorf("access token ID cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	now := time.Now().UTC()
	return &WebSession{
		ID:         ulid.Make(),
		IdentityID: identityID,
		TokenID:    tokenID,
		TokenHash:  tokenHash,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *WebSession) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashSessionToken(token)

	return token, hash, nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// WebSessionRepository manages web session persistence.
type WebSessionRepository interface {
	// Create stores a new web session.
	Create(ctx context.Context, session *WebSession) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*WebSession, error)

	// UpdateLastSeen updates the LastSeenAt timestamp for a session.
	UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByIdentity removes all sessions for an identity.
	DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error

	// DeleteExpired removes all expired sessions and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
