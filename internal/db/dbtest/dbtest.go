// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/usermap/internal/db"
)

// New returns a fresh, fully migrated in-memory SQLite database.
func New(t testing.TB) *sqlx.DB {
	t.Helper()

	database, err := db.Init(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	require.NoError(t, db.RunMigrations(context.Background(), database.DB, db.DriverSQLite))
	return database
}
