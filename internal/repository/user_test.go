package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/usermap/internal/db/dbtest"
	"github.com/templui/usermap/internal/model"
)

func newUser(email string, role model.Role) *model.User {
	return &model.User{
		ID:              uuid.New().String(),
		Email:           email,
		PasswordHash:    "hash-" + email,
		Name:            "Name " + email,
		Role:            role,
		Latitude:        -6.2,
		Longitude:       106.8,
		IsActive:        true,
		ConfirmationKey: uuid.New().String(),
	}
}

func TestCreateAndLookup(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	u := newUser("a@x.com", model.RoleTrainer)
	require.NoError(t, repo.Create(ctx, u))

	byID, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)
	assert.Equal(t, model.RoleTrainer, byID.Role)
	assert.False(t, byID.IsConfirmed)
	assert.True(t, byID.IsActive)
	assert.Equal(t, u.ConfirmationKey, byID.ConfirmationKey)

	byEmail, err := repo.ByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
}

func TestLookup_NotFound(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.ByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("a@x.com", model.RoleUser)))
	err := repo.Create(ctx, newUser("a@x.com", model.RoleUser))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMarkConfirmed_IsOneWayLatch(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	u := newUser("a@x.com", model.RoleUser)
	require.NoError(t, repo.Create(ctx, u))

	changed, err := repo.MarkConfirmed(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkConfirmed(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsConfirmed)
}

func TestMarkConfirmed_ConcurrentCallersOneWinner(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	u := newUser("a@x.com", model.RoleUser)
	require.NoError(t, repo.Create(ctx, u))

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := repo.MarkConfirmed(ctx, u.ID)
			assert.NoError(t, err)
			results <- changed
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for changed := range results {
		if changed {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestReplacePasswordHash_ComparesAndBumpsSessionVersion(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	u := newUser("a@x.com", model.RoleUser)
	require.NoError(t, repo.Create(ctx, u))

	ok, err := repo.ReplacePasswordHash(ctx, u.ID, "wrong-old", "new")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ReplacePasswordHash(ctx, u.ID, u.PasswordHash, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Equal(t, u.SessionVersion+1, got.SessionVersion)

	// Stale hash loses.
	ok, err = repo.ReplacePasswordHash(ctx, u.ID, u.PasswordHash, "newer")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateProfile_KeepsRoleAndFlags(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	u := newUser("a@x.com", model.RoleDeveloper)
	require.NoError(t, repo.Create(ctx, u))

	u.Name = "Renamed"
	u.Email = "b@x.com"
	u.Role = model.RoleUser
	u.IsConfirmed = true
	require.NoError(t, repo.UpdateProfile(ctx, u))

	got, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "b@x.com", got.Email)
	assert.Equal(t, model.RoleDeveloper, got.Role)
	assert.False(t, got.IsConfirmed)
}

func TestUpdateProfile_DuplicateEmailAndMissing(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	a := newUser("a@x.com", model.RoleUser)
	b := newUser("b@x.com", model.RoleUser)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	b.Email = "a@x.com"
	assert.ErrorIs(t, repo.UpdateProfile(ctx, b), ErrDuplicateEmail)

	ghost := newUser("ghost@x.com", model.RoleUser)
	assert.ErrorIs(t, repo.UpdateProfile(ctx, ghost), ErrUserNotFound)
}

func TestListPublic_FiltersByRoleConfirmedActive(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	ctx := context.Background()

	visible := newUser("visible@x.com", model.RoleTrainer)
	unconfirmed := newUser("unconfirmed@x.com", model.RoleTrainer)
	inactive := newUser("inactive@x.com", model.RoleTrainer)
	otherRole := newUser("other@x.com", model.RoleUser)
	for _, u := range []*model.User{visible, unconfirmed, inactive, otherRole} {
		require.NoError(t, repo.Create(ctx, u))
	}
	for _, u := range []*model.User{visible, inactive, otherRole} {
		_, err := repo.MarkConfirmed(ctx, u.ID)
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetActive(ctx, inactive.ID, false))

	users, err := repo.ListPublic(ctx, model.RoleTrainer)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, visible.ID, users[0].ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSetActive_Missing(t *testing.T) {
	repo := NewUserRepository(dbtest.New(t))
	assert.ErrorIs(t, repo.SetActive(context.Background(), "missing", false), ErrUserNotFound)
}
