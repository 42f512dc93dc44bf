package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/usermap/internal/db"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/repository"
)

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "usermapctl", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(MigrateCmd(), UserCmd())
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRoot()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// useDatabase points the CLI at a fresh, migrated sqlite file and returns a
// repository on the same file.
func useDatabase(t *testing.T) repository.UserRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usermap.db")
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_CONNECTION", path)
	t.Setenv("DEFAULT_ACTIVE", "true")

	out, err := execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "database at version")

	database, err := db.Init(context.Background(), db.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(database) })
	return repository.NewUserRepository(database)
}

func seed(t *testing.T, repo repository.UserRepository, email string, role model.Role, confirmed bool) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &model.User{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    "x",
		Name:            email,
		Role:            role,
		IsConfirmed:     confirmed,
		IsActive:        true,
		ConfirmationKey: "key",
	}))
}

func TestUserActivateDeactivate(t *testing.T) {
	repo := useDatabase(t)
	seed(t, repo, "bob@example.com", model.RoleUser, true)

	out, err := execute(t, "user", "deactivate", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com: active=false\n", out)

	user, err := repo.ByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.True(t, user.IsConfirmed)

	out, err = execute(t, "user", "activate", "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com: active=true\n", out)

	user, err = repo.ByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
}

func TestUserConfirm(t *testing.T) {
	repo := useDatabase(t)
	seed(t, repo, "ada@example.com", model.RoleDeveloper, false)

	out, err := execute(t, "user", "confirm", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com: confirmed\n", out)

	user, err := repo.ByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsConfirmed)

	out, err = execute(t, "user", "confirm", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com: already_confirmed\n", out)
}

func TestUserUnknownEmail(t *testing.T) {
	useDatabase(t)

	_, err := execute(t, "user", "deactivate", "nobody@example.com")
	require.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = execute(t, "user", "confirm", "nobody@example.com")
	require.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserList(t *testing.T) {
	repo := useDatabase(t)
	seed(t, repo, "ada@example.com", model.RoleDeveloper, false)
	seed(t, repo, "bob@example.com", model.RoleUser, true)

	out, err := execute(t, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "EMAIL")
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "bob@example.com")

	out, err = execute(t, "user", "list", "--role", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "Developer")
	assert.NotContains(t, out, "bob@example.com")

	_, err = execute(t, "user", "list", "--role", "9")
	assert.EqualError(t, err, "unknown role 9")
}

func TestMigrateDown(t *testing.T) {
	useDatabase(t)

	out, err := execute(t, "migrate", "down")
	require.NoError(t, err)
	assert.Equal(t, "database at version 0\n", out)

	out, err = execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "database at version 1\n", out)
}
