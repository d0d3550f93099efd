// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package web

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/coursekeep/coursekeep/internal/auth"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Register(ctx context.Context, fullName, userName, email, password, confirmPassword string) (*auth.Result, error) {
	args := m.Called(ctx, fullName, userName, email, password, confirmPassword)
	res, _ := args.Get(0).(*auth.Result)
	return res, args.Error(1)
}

func (m *mockAuth) Authenticate(ctx context.Context, email, password string) (*auth.Result, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*auth.Result)
	return res, args.Error(1)
}

func (m *mockAuth) AssignRole(ctx context.Context, userID, roleName string) (string, error) {
	args := m.Called(ctx, userID, roleName)
	return args.String(0), args.Error(1)
}

func (m *mockAuth) RequestPasswordReset(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockAuth) CompletePasswordReset(ctx context.Context, email, token, newPassword string) (bool, error) {
	args := m.Called(ctx, email, token, newPassword)
	return args.Bool(0), args.Error(1)
}

func (m *mockAuth) CurrentIdentity(ctx context.Context) (*auth.Identity, error) {
	args := m.Called(ctx)
	id, _ := args.Get(0).(*auth.Identity)
	return id, args.Error(1)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Start(ctx context.Context, result *auth.Result, userAgent, ipAddress string) (*auth.WebSession, string, error) {
	args := m.Called(ctx, result, userAgent, ipAddress)
	session, _ := args.Get(0).(*auth.WebSession)
	return session, args.String(1), args.Error(2)
}

func (m *mockSessions) Validate(ctx context.Context, token string) (*auth.WebSession, error) {
	args := m.Called(ctx, token)
	session, _ := args.Get(0).(*auth.WebSession)
	return session, args.Error(1)
}

func (m *mockSessions) End(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

// memSessionRepo backs a real auth.SessionService in tests.
type memSessionRepo struct {
	mu   sync.Mutex
	byID map[ulid.ULID]auth.WebSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byID: make(map[ulid.ULID]auth.WebSession)}
}

func (r *memSessionRepo) Create(_ context.Context, session *auth.WebSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[session.ID] = *session
	return nil
}

func (r *memSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*auth.WebSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.byID {
		if session.TokenHash == tokenHash {
			return &session, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *memSessionRepo) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	session.LastSeenAt = lastSeen
	r.byID[id] = session
	return nil
}

func (r *memSessionRepo) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memSessionRepo) DeleteByIdentity(_ context.Context, identityID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.byID {
		if session.IdentityID == identityID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

var _ auth.WebSessionRepository = (*memSessionRepo)(nil)

var (
	_ AuthService    = (*mockAuth)(nil)
	_ SessionManager = (*mockSessions)(nil)
	_ AuthService    = (*auth.Service)(nil)
	_ SessionManager = (*auth.SessionService)(nil)
	_ TokenParser    = (*auth.TokenIssuer)(nil)
)
