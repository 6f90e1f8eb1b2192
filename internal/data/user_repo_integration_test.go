package data

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	"github.com/cmpt474/mm-login-gateway/internal/testutil"
)

func setupUserRepo(t *testing.T) (*UserRepo, *FixedTimeProvider) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	tp := NewFixedTimeProvider(testutil.TestTime())
	return NewUserRepo(db, tp), tp
}

func TestUserRepo_CreateAndGet(t *testing.T) {
	repo, _ := setupUserRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, domainauth.NewUser{Identity: "abc12"})
	require.NoError(t, err)
	assert.True(t, created)

	u, err := repo.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.Equal(t, "abc12", u.Identity)
	assert.Equal(t, domainauth.RoleStudent, u.Role)
	assert.Empty(t, u.AuthHash)
	assert.True(t, u.CreatedAt.Equal(testutil.TestTime()))

	ok, err := repo.Exists(ctx, "abc12")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserRepo_CreateIsNotAnUpsert(t *testing.T) {
	repo, _ := setupUserRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, domainauth.NewUser{Identity: "abc12", AuthHash: "first"})
	require.NoError(t, err)

	created, err := repo.Create(ctx, domainauth.NewUser{Identity: "abc12", Role: domainauth.RoleMentor, AuthHash: "second"})
	require.NoError(t, err)
	assert.False(t, created)

	u, err := repo.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleStudent, u.Role)
	assert.Equal(t, "first", u.AuthHash)
}

func TestUserRepo_ConcurrentCreate(t *testing.T) {
	repo, _ := setupUserRepo(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Create(ctx, domainauth.NewUser{Identity: "race1"})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestUserRepo_GetMissing(t *testing.T) {
	repo, _ := setupUserRepo(t)
	_, err := repo.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, domainauth.ErrUserNotFound)
}

func TestUserRepo_Update(t *testing.T) {
	repo, tp := setupUserRepo(t)
	ctx := context.Background()

	updated, err := repo.Update(ctx, "abc12", domainauth.UserUpdate{Role: testutil.RolePtr(domainauth.RoleMentor)})
	require.NoError(t, err)
	assert.False(t, updated)

	_, err = repo.Create(ctx, domainauth.NewUser{Identity: "abc12", AuthHash: "h"})
	require.NoError(t, err)

	tp.AddTime(time.Hour)
	updated, err = repo.Update(ctx, "abc12", domainauth.UserUpdate{Role: testutil.RolePtr(domainauth.RoleMentor)})
	require.NoError(t, err)
	assert.True(t, updated)

	u, err := repo.Get(ctx, "abc12")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleMentor, u.Role)
	assert.Equal(t, "h", u.AuthHash)
	assert.True(t, u.UpdatedAt.Equal(testutil.TestTime().Add(time.Hour)))

	updated, err = repo.Update(ctx, "abc12", domainauth.UserUpdate{})
	require.NoError(t, err)
	assert.True(t, updated)
}

func TestUserRepo_RejectsBadInput(t *testing.T) {
	repo := NewUserRepo(nil, nil)
	ctx := context.Background()

	_, err := repo.Create(ctx, domainauth.NewUser{Identity: " "})
	assert.ErrorIs(t, err, ErrIdentityRequired)
	_, err = repo.Create(ctx, domainauth.NewUser{Identity: "abc12", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = repo.Update(ctx, "abc12", domainauth.UserUpdate{Role: testutil.RolePtr("admin")})
	assert.ErrorIs(t, err, ErrInvalidRole)

	ok, err := repo.Exists(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
