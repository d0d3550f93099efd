// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekeep/coursekeep/internal/auth"
	"github.com/coursekeep/coursekeep/pkg/errutil"
)

var sessionRowColumns = []string{
	"id", "identity_id", "token_id", "token_hash", "user_agent", "ip_address",
	"expires_at", "created_at", "last_seen_at",
}

func TestWebSessionRepository_Create(t *testing.T) {
	session, err := auth.NewWebSession(ulid.Make(), "jti-1", "hash", "agent", "10.0.0.1",
		time.Now().Add(auth.SessionTokenExpiry))
	require.NoError(t, err)

	mock := newMockPool(t)
	mock.ExpectExec("INSERT INTO web_sessions").
		WithArgs(
			session.ID.String(), session.IdentityID.String(), "jti-1", "hash", "agent", "10.0.0.1",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewWebSessionRepository(mock).Create(context.Background(), session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebSessionRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()
	id, identityID := ulid.Make(), ulid.Make()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("FROM web_sessions").
			WithArgs("hash").
			WillReturnRows(pgxmock.NewRows(sessionRowColumns).
				AddRow(id.String(), identityID.String(), "jti-1", "hash", "agent", "10.0.0.1",
					now.Add(time.Hour), now, now))

		session, err := NewWebSessionRepository(mock).GetByTokenHash(ctx, "hash")
		require.NoError(t, err)
		assert.Equal(t, id, session.ID)
		assert.Equal(t, identityID, session.IdentityID)
		assert.Equal(t, "jti-1", session.TokenID)
		assert.Equal(t, "10.0.0.1", session.IPAddress)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("FROM web_sessions").
			WithArgs("missing").
			WillReturnRows(pgxmock.NewRows(sessionRowColumns))

		_, err := NewWebSessionRepository(mock).GetByTokenHash(ctx, "missing")
		assert.True(t, errors.Is(err, auth.ErrNotFound))
		errutil.AssertErrorCode(t, err, "SESSION_NOT_FOUND")
	})
}

func TestWebSessionRepository_UpdateLastSeenAndDelete(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	mock := newMockPool(t)
	mock.ExpectExec("UPDATE web_sessions SET last_seen_at").
		WithArgs(id.String(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM web_sessions WHERE id").
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("UPDATE web_sessions SET last_seen_at").
		WithArgs(id.String(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM web_sessions WHERE id").
		WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewWebSessionRepository(mock)
	require.NoError(t, repo.UpdateLastSeen(ctx, id, time.Now()))
	require.NoError(t, repo.Delete(ctx, id))

	err := repo.UpdateLastSeen(ctx, id, time.Now())
	assert.True(t, errors.Is(err, auth.ErrNotFound))
	err = repo.Delete(ctx, id)
	assert.True(t, errors.Is(err, auth.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebSessionRepository_Cleanup(t *testing.T) {
	ctx := context.Background()
	identityID := ulid.Make()

	mock := newMockPool(t)
	mock.ExpectExec("DELETE FROM web_sessions WHERE identity_id").
		WithArgs(identityID.String()).
		WillReturnError(errors.New("boom"))
	mock.ExpectExec("DELETE FROM web_sessions WHERE expires_at").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	repo := NewWebSessionRepository(mock)
	err := repo.DeleteByIdentity(ctx, identityID)
	errutil.AssertErrorCode(t, err, "SESSION_DELETE_BY_IDENTITY_FAILED")

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
