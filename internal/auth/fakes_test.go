// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/coursekeep/coursekeep/internal/auth"
)

// memIdentities is an in-memory IdentityRepository with case-insensitive
// unique email and username. Initial roles are granted through roles, and
// failGrant makes the grant fail, leaving nothing stored.
type memIdentities struct {
	mu        sync.Mutex
	byID      map[ulid.ULID]auth.Identity
	roles     *memRoles
	failGrant error
}

func newMemIdentities(roles *memRoles) *memIdentities {
	return &memIdentities{byID: make(map[ulid.ULID]auth.Identity), roles: roles}
}

func (m *memIdentities) Create(ctx context.Context, identity *auth.Identity, roles ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if auth.NormalizeEmail(existing.Email) == auth.NormalizeEmail(identity.Email) {
			return auth.ErrDuplicateEmail
		}
		if auth.NormalizeUsername(existing.Username) == auth.NormalizeUsername(identity.Username) {
			return auth.ErrDuplicateUsername
		}
	}
	if len(roles) > 0 && m.failGrant != nil {
		return m.failGrant
	}
	for _, role := range roles {
		ok, _ := m.roles.Exists(ctx, role) //nolint:errcheck // in-memory lookup
		if !ok {
			return auth.ErrNotFound
		}
	}
	m.byID[identity.ID] = *identity
	for _, role := range roles {
		if err := m.roles.AddMember(ctx, identity.ID, role); err != nil {
			return err
		}
	}
	return nil
}

func (m *memIdentities) GetByID(_ context.Context, id ulid.ULID) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &identity, nil
}

func (m *memIdentities) GetByEmail(_ context.Context, email string) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.byID {
		if auth.NormalizeEmail(identity.Email) == auth.NormalizeEmail(email) {
			return &identity, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memIdentities) GetByUsername(_ context.Context, username string) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.byID {
		if auth.NormalizeUsername(identity.Username) == auth.NormalizeUsername(username) {
			return &identity, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memIdentities) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	identity.PasswordHash = passwordHash
	m.byID[id] = identity
	return nil
}

func (m *memIdentities) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// memRoles is an in-memory RoleRepository seeded with the standard roles.
type memRoles struct {
	mu      sync.Mutex
	defined map[string]string
	members map[ulid.ULID]map[string]struct{}
}

func newMemRoles() *memRoles {
	r := &memRoles{
		defined: make(map[string]string),
		members: make(map[ulid.ULID]map[string]struct{}),
	}
	for _, name := range []string{auth.RoleStudent, auth.RoleInstructor, auth.RoleAdmin} {
		r.defined[strings.ToUpper(name)] = name
	}
	return r
}

func (r *memRoles) Exists(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.defined[strings.ToUpper(name)]
	return ok, nil
}

func (r *memRoles) AddMember(_ context.Context, identityID ulid.ULID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	canonical, ok := r.defined[strings.ToUpper(name)]
	if !ok {
		return auth.ErrNotFound
	}
	if r.members[identityID] == nil {
		r.members[identityID] = make(map[string]struct{})
	}
	r.members[identityID][canonical] = struct{}{}
	return nil
}

func (r *memRoles) IsMember(_ context.Context, identityID ulid.ULID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	canonical, ok := r.defined[strings.ToUpper(name)]
	if !ok {
		return false, nil
	}
	_, member := r.members[identityID][canonical]
	return member, nil
}

func (r *memRoles) ListForIdentity(_ context.Context, identityID ulid.ULID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.members[identityID]))
	for name := range r.members[identityID] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// memClaims is an in-memory ClaimRepository.
type memClaims struct {
	mu     sync.Mutex
	claims map[ulid.ULID][]auth.Claim
}

func newMemClaims() *memClaims {
	return &memClaims{claims: make(map[ulid.ULID][]auth.Claim)}
}

func (c *memClaims) ListForIdentity(_ context.Context, identityID ulid.ULID) ([]auth.Claim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]auth.Claim(nil), c.claims[identityID]...), nil
}

func (c *memClaims) Add(_ context.Context, identityID ulid.ULID, claim auth.Claim) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.claims[identityID] {
		if existing == claim {
			return nil
		}
	}
	c.claims[identityID] = append(c.claims[identityID], claim)
	return nil
}

// memResets is an in-memory PasswordResetRepository.
type memResets struct {
	mu   sync.Mutex
	byID map[ulid.ULID]auth.PasswordReset
}

func newMemResets() *memResets {
	return &memResets{byID: make(map[ulid.ULID]auth.PasswordReset)}
}

func (r *memResets) Create(_ context.Context, reset *auth.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[reset.ID] = *reset
	return nil
}

func (r *memResets) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reset := range r.byID {
		if reset.TokenHash == tokenHash {
			return &reset, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *memResets) Consume(_ context.Context, id ulid.ULID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

func (r *memResets) DeleteByIdentity(_ context.Context, identityID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, reset := range r.byID {
		if reset.IdentityID == identityID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *memResets) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for id, reset := range r.byID {
		if reset.IsExpiredAt(now) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func (r *memResets) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// expireAll moves every stored reset's expiry into the past.
func (r *memResets) expireAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, reset := range r.byID {
		reset.ExpiresAt = time.Now().Add(-time.Minute)
		r.byID[id] = reset
	}
}

// memSessions is an in-memory WebSessionRepository.
type memSessions struct {
	mu   sync.Mutex
	byID map[ulid.ULID]auth.WebSession
}

func newMemSessions() *memSessions {
	return &memSessions{byID: make(map[ulid.ULID]auth.WebSession)}
}

func (s *memSessions) Create(_ context.Context, session *auth.WebSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[session.ID] = *session
	return nil
}

func (s *memSessions) GetByTokenHash(_ context.Context, tokenHash string) (*auth.WebSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.byID {
		if session.TokenHash == tokenHash {
			return &session, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memSessions) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	session.LastSeenAt = lastSeen
	s.byID[id] = session
	return nil
}

func (s *memSessions) Delete(_ context.Context, id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *memSessions) DeleteByIdentity(_ context.Context, identityID ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.byID {
		if session.IdentityID == identityID {
			delete(s.byID, id)
		}
	}
	return nil
}

func (s *memSessions) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for id, session := range s.byID {
		if session.IsExpiredAt(now) {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// fastHasher stores passwords with a trivial reversible encoding so tests
// don't pay for argon2id.
type fastHasher struct{}

func (fastHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "$plain$" + password, nil
}

func (fastHasher) Verify(password, hash string) (bool, error) {
	return hash == "$plain$"+password, nil
}

func (fastHasher) NeedsUpgrade(string) bool { return false }

type storeFixture struct {
	identities *memIdentities
	roles      *memRoles
	claims     *memClaims
	resets     *memResets
	store      *auth.Store
}

func newStoreFixture(hasher auth.PasswordHasher) (*storeFixture, error) {
	roles := newMemRoles()
	f := &storeFixture{
		identities: newMemIdentities(roles),
		roles:      roles,
		claims:     newMemClaims(),
		resets:     newMemResets(),
	}
	store, err := auth.NewStore(f.identities, f.roles, f.claims, f.resets, hasher, auth.DefaultPasswordPolicy())
	if err != nil {
		return nil, err
	}
	f.store = store
	return f, nil
}
