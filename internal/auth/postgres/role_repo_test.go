// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursekeep/coursekeep/internal/auth"
	"github.com/coursekeep/coursekeep/pkg/errutil"
)

func TestRoleRepository_Exists(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ADMIN").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("JANITOR").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	repo := NewRoleRepository(mock)
	ok, err := repo.Exists(context.Background(), " admin ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(context.Background(), "Janitor")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_AddMember(t *testing.T) {
	ctx := context.Background()
	identityID := ulid.Make()

	t.Run("grants role", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("SELECT id FROM roles").
			WithArgs("STUDENT").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("role-student"))
		mock.ExpectExec("INSERT INTO identity_roles").
			WithArgs(identityID.String(), "role-student").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewRoleRepository(mock).AddMember(ctx, identityID, auth.RoleStudent))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown role", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("SELECT id FROM roles").
			WithArgs("JANITOR").
			WillReturnError(pgx.ErrNoRows)

		err := NewRoleRepository(mock).AddMember(ctx, identityID, "Janitor")
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrNotFound))
		errutil.AssertErrorCode(t, err, "ROLE_NOT_FOUND")
	})

	t.Run("insert error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("SELECT id FROM roles").
			WithArgs("STUDENT").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("role-student"))
		mock.ExpectExec("INSERT INTO identity_roles").
			WithArgs(identityID.String(), "role-student").
			WillReturnError(errors.New("connection reset"))

		err := NewRoleRepository(mock).AddMember(ctx, identityID, auth.RoleStudent)
		errutil.AssertErrorCode(t, err, "ROLE_ADD_MEMBER_FAILED")
	})
}

func TestRoleRepository_IsMember(t *testing.T) {
	identityID := ulid.Make()
	mock := newMockPool(t)
	mock.ExpectQuery("FROM identity_roles").
		WithArgs(identityID.String(), "INSTRUCTOR").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewRoleRepository(mock).IsMember(context.Background(), identityID, auth.RoleInstructor)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoleRepository_ListForIdentity(t *testing.T) {
	identityID := ulid.Make()

	t.Run("returns names in order", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("ORDER BY r.name").
			WithArgs(identityID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"name"}).
				AddRow(auth.RoleAdmin).
				AddRow(auth.RoleStudent))

		roles, err := NewRoleRepository(mock).ListForIdentity(context.Background(), identityID)
		require.NoError(t, err)
		assert.Equal(t, []string{auth.RoleAdmin, auth.RoleStudent}, roles)
	})

	t.Run("no roles is empty not nil", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("ORDER BY r.name").
			WithArgs(identityID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"name"}))

		roles, err := NewRoleRepository(mock).ListForIdentity(context.Background(), identityID)
		require.NoError(t, err)
		assert.NotNil(t, roles)
		assert.Empty(t, roles)
	})

	t.Run("query error", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("ORDER BY r.name").
			WithArgs(identityID.String()).
			WillReturnError(errors.New("boom"))

		_, err := NewRoleRepository(mock).ListForIdentity(context.Background(), identityID)
		errutil.AssertErrorCode(t, err, "ROLE_LIST_FAILED")
	})
}
