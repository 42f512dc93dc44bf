// Package db opens the account store and keeps its schema current.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Concurrent confirmations and resets race on the same row; without a busy
// timeout the loser fails with SQLITE_BUSY instead of waiting its turn.
var sqlitePragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
}

// Init connects to the database named by driver and connection and checks
// that it answers. SQLite files get their directory created first.
func Init(ctx context.Context, driver, connection string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if !isMemory(connection) {
			err := os.MkdirAll(filepath.Dir(connection), 0755)
			if err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		connection = sqliteDSN(connection)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sqlx.Open(driver, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Every connection to :memory: is a separate database
	if driver == DriverSQLite && isMemory(connection) {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = db.PingContext(pingCtx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.InfoContext(ctx, "database connected", "driver", driver)
	return db, nil
}

func Close(db *sqlx.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}

func isMemory(connection string) bool {
	return strings.HasPrefix(connection, ":memory:") || strings.Contains(connection, "mode=memory")
}

// sqliteDSN appends the pragmas the account store needs unless the
// connection string already sets its own.
func sqliteDSN(connection string) string {
	if strings.Contains(connection, "_pragma=") {
		return connection
	}
	sep := "?"
	if strings.Contains(connection, "?") {
		sep = "&"
	}
	return connection + sep + strings.Join(sqlitePragmas, "&")
}
