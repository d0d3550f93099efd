// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursekeep/coursekeep/internal/auth"
	"github.com/coursekeep/coursekeep/pkg/errutil"
)

const strongPassword = "Passw0rd!"

func newIdentity(t *testing.T, username string) *auth.Identity {
	t.Helper()
	identity, err := auth.NewIdentity("Test User", username, username+"@example.com")
	require.NoError(t, err)
	return identity
}

func TestNewStore_RequiresDependencies(t *testing.T) {
	roles := newMemRoles()
	ids, claims, resets := newMemIdentities(roles), newMemClaims(), newMemResets()
	policy := auth.DefaultPasswordPolicy()

	_, err := auth.NewStore(nil, roles, claims, resets, fastHasher{}, policy)
	errutil.AssertErrorCode(t, err, "STORE_INVALID_DEPENDENCY")
	_, err = auth.NewStore(ids, nil, claims, resets, fastHasher{}, policy)
	errutil.AssertErrorCode(t, err, "STORE_INVALID_DEPENDENCY")
	_, err = auth.NewStore(ids, roles, nil, resets, fastHasher{}, policy)
	errutil.AssertErrorCode(t, err, "STORE_INVALID_DEPENDENCY")
	_, err = auth.NewStore(ids, roles, claims, nil, fastHasher{}, policy)
	errutil.AssertErrorCode(t, err, "STORE_INVALID_DEPENDENCY")
	_, err = auth.NewStore(ids, roles, claims, resets, nil, policy)
	errutil.AssertErrorCode(t, err, "STORE_INVALID_DEPENDENCY")
}

func TestStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes password and persists identity", func(t *testing.T) {
		f, err := newStoreFixture(fastHasher{})
		require.NoError(t, err)

		identity := newIdentity(t, "alice")
		reasons, err := f.store.Create(ctx, identity, strongPassword)
		require.NoError(t, err)
		assert.Empty(t, reasons)
		assert.NotEqual(t, strongPassword, identity.PasswordHash)

		found, err := f.store.FindByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, identity.ID, found.ID)
	})

	t.Run("policy rejection stores nothing", func(t *testing.T) {
		f, err := newStoreFixture(fastHasher{})
		require.NoError(t, err)

		reasons, err := f.store.Create(ctx, newIdentity(t, "bob"), "weakpw")
		require.NoError(t, err)
		assert.NotEmpty(t, reasons)
		assert.Equal(t, 0, f.identities.count())
	})

	t.Run("uniqueness violations become reasons", func(t *testing.T) {
		f, err := newStoreFixture(fastHasher{})
		require.NoError(t, err)

		first := newIdentity(t, "carol")
		_, err = f.store.Create(ctx, first, strongPassword)
		require.NoError(t, err)

		sameEmail, err := auth.NewIdentity("Other", "carol2", "carol@example.com")
		require.NoError(t, err)
		reasons, err := f.store.Create(ctx, sameEmail, strongPassword)
		require.NoError(t, err)
		assert.Equal(t, []string{"Email 'carol@example.com' is already taken."}, reasons)

		sameName, err := auth.NewIdentity("Other", "CAROL", "other@example.com")
		require.NoError(t, err)
		reasons, err = f.store.Create(ctx, sameName, strongPassword)
		require.NoError(t, err)
		assert.Equal(t, []string{"Username 'CAROL' is already taken."}, reasons)

		assert.Equal(t, 1, f.identities.count())
	})

	t.Run("initial roles are granted with the identity", func(t *testing.T) {
		f, err := newStoreFixture(fastHasher{})
		require.NoError(t, err)

		identity := newIdentity(t, "dora")
		reasons, err := f.store.Create(ctx, identity, strongPassword, auth.RoleStudent)
		require.NoError(t, err)
		require.Empty(t, reasons)

		roles, err := f.store.GetRoles(ctx, identity)
		require.NoError(t, err)
		assert.Equal(t, []string{auth.RoleStudent}, roles)
	})

	t.Run("unknown initial role stores nothing", func(t *testing.T) {
		f, err := newStoreFixture(fastHasher{})
		require.NoError(t, err)

		_, err = f.store.Create(ctx, newIdentity(t, "eve"), strongPassword, "Janitor")
		errutil.AssertErrorCodeIs(t, err, "STORE_CREATE_FAILED", auth.ErrNotFound)
		assert.Equal(t, 0, f.identities.count())
	})

	t.Run("concurrent creates with the same email yield one success", func(t *testing.T) {
		f, err := newStoreFixture(fastHasher{})
		require.NoError(t, err)

		var successes atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				identity, idErr := auth.NewIdentity("Racer", "racer"+string(rune('a'+i)), "race@example.com")
				if idErr != nil {
					return
				}
				reasons, createErr := f.store.Create(ctx, identity, strongPassword)
				if createErr == nil && len(reasons) == 0 {
					successes.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), successes.Load())
		assert.Equal(t, 1, f.identities.count())
	})
}

func TestStore_VerifyPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("correct and incorrect password", func(t *testing.T) {
		f, err := newStoreFixture(fastHasher{})
		require.NoError(t, err)
		identity := newIdentity(t, "dave")
		_, err = f.store.Create(ctx, identity, strongPassword)
		require.NoError(t, err)

		ok, err := f.store.VerifyPassword(ctx, identity, strongPassword)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.store.VerifyPassword(ctx, identity, "Wr0ng!pass")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("nil identity always fails without error", func(t *testing.T) {
		f, err := newStoreFixture(auth.NewArgon2idHasher())
		require.NoError(t, err)

		ok, err := f.store.VerifyPassword(ctx, nil, strongPassword)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("legacy bcrypt hash is upgraded on success", func(t *testing.T) {
		f, err := newStoreFixture(auth.NewArgon2idHasher())
		require.NoError(t, err)

		legacy, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
		require.NoError(t, err)
		identity := newIdentity(t, "erin")
		identity.PasswordHash = string(legacy)
		require.NoError(t, f.identities.Create(ctx, identity))

		ok, err := f.store.VerifyPassword(ctx, identity, strongPassword)
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := f.store.FindByID(ctx, identity.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
	})
}

func TestStore_Roles(t *testing.T) {
	ctx := context.Background()
	f, err := newStoreFixture(fastHasher{})
	require.NoError(t, err)
	identity := newIdentity(t, "frank")
	_, err = f.store.Create(ctx, identity, strongPassword)
	require.NoError(t, err)

	exists, err := f.store.RoleExists(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.store.RoleExists(ctx, "Janitor")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.store.AddRole(ctx, identity, "instructor"))
	member, err := f.store.IsInRole(ctx, identity, auth.RoleInstructor)
	require.NoError(t, err)
	assert.True(t, member)

	roles, err := f.store.GetRoles(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleInstructor}, roles)

	err = f.store.AddRole(ctx, identity, "Janitor")
	require.Error(t, err)
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}

func TestStore_GetClaims(t *testing.T) {
	ctx := context.Background()
	f, err := newStoreFixture(fastHasher{})
	require.NoError(t, err)
	identity := newIdentity(t, "gina")

	require.NoError(t, f.store.AddClaim(ctx, identity, auth.Claim{Type: " dept ", Value: "math"}))
	require.NoError(t, f.store.AddClaim(ctx, identity, auth.Claim{Type: "dept", Value: "math"}))
	claims, err := f.store.GetClaims(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, []auth.Claim{{Type: "dept", Value: "math"}}, claims)
}

func TestStore_AddClaim_Rejects(t *testing.T) {
	ctx := context.Background()
	f, err := newStoreFixture(fastHasher{})
	require.NoError(t, err)
	identity := newIdentity(t, "ivy")

	err = f.store.AddClaim(ctx, identity, auth.Claim{Type: "  ", Value: "x"})
	errutil.AssertErrorCode(t, err, "CLAIM_INVALID")

	err = f.store.AddClaim(ctx, identity, auth.Claim{Type: auth.ClaimRoles, Value: auth.RoleAdmin})
	errutil.AssertErrorCode(t, err, "CLAIM_RESERVED")

	claims, err := f.store.GetClaims(ctx, identity)
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestStore_PasswordReset(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*storeFixture, *auth.Identity) {
		t.Helper()
		f, err := newStoreFixture(fastHasher{})
		require.NoError(t, err)
		identity := newIdentity(t, "hank")
		_, err = f.store.Create(ctx, identity, strongPassword)
		require.NoError(t, err)
		return f, identity
	}

	t.Run("valid token resets password once", func(t *testing.T) {
		f, identity := setup(t)
		token, err := f.store.GeneratePasswordResetToken(ctx, identity)
		require.NoError(t, err)
		assert.Len(t, token, 2*auth.ResetTokenBytes)

		ok, err := f.store.ResetPassword(ctx, identity, token, "N3w!password")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.store.VerifyPassword(ctx, identity, "N3w!password")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.store.ResetPassword(ctx, identity, token, "An0ther!pass")
		require.NoError(t, err)
		assert.False(t, ok, "token must be single-use")
	})

	t.Run("new token invalidates the previous one", func(t *testing.T) {
		f, identity := setup(t)
		first, err := f.store.GeneratePasswordResetToken(ctx, identity)
		require.NoError(t, err)
		second, err := f.store.GeneratePasswordResetToken(ctx, identity)
		require.NoError(t, err)
		assert.Equal(t, 1, f.resets.count())

		ok, err := f.store.ResetPassword(ctx, identity, first, "N3w!password")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.store.ResetPassword(ctx, identity, second, "N3w!password")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		f, identity := setup(t)
		token, err := f.store.GeneratePasswordResetToken(ctx, identity)
		require.NoError(t, err)
		f.resets.expireAll()

		ok, err := f.store.ResetPassword(ctx, identity, token, "N3w!password")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, f.resets.count())
	})

	t.Run("token of another identity is rejected", func(t *testing.T) {
		f, identity := setup(t)
		other := newIdentity(t, "ivan")
		_, err := f.store.Create(ctx, other, strongPassword)
		require.NoError(t, err)

		token, err := f.store.GeneratePasswordResetToken(ctx, other)
		require.NoError(t, err)

		ok, err := f.store.ResetPassword(ctx, identity, token, "N3w!password")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, f.resets.count())
	})

	t.Run("weak password keeps the token usable", func(t *testing.T) {
		f, identity := setup(t)
		token, err := f.store.GeneratePasswordResetToken(ctx, identity)
		require.NoError(t, err)

		ok, err := f.store.ResetPassword(ctx, identity, token, "weak")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.store.ResetPassword(ctx, identity, token, "N3w!password")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown and empty tokens are rejected", func(t *testing.T) {
		f, identity := setup(t)
		ok, err := f.store.ResetPassword(ctx, identity, "deadbeef", "N3w!password")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.store.ResetPassword(ctx, identity, "", "N3w!password")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent redemption succeeds once", func(t *testing.T) {
		f, identity := setup(t)
		token, err := f.store.GeneratePasswordResetToken(ctx, identity)
		require.NoError(t, err)

		var successes atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				snapshot := *identity
				ok, resetErr := f.store.ResetPassword(ctx, &snapshot, token, "N3w!password")
				if resetErr == nil && ok {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), successes.Load())
	})
}

func TestStore_FindByID_NotFound(t *testing.T) {
	f, err := newStoreFixture(fastHasher{})
	require.NoError(t, err)
	_, err = f.store.FindByID(context.Background(), ulid.Make())
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}
