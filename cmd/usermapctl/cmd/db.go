package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/usermap/internal/config"
	"github.com/templui/usermap/internal/db"
	"github.com/templui/usermap/internal/logger"
)

// openDB connects with DB_DRIVER / DB_CONNECTION from the environment or .env.
func openDB(ctx context.Context) (*sqlx.DB, *config.Config, error) {
	cfg := config.LoadDatabase()
	logger.Init(logger.Options{Development: true})

	database, err := db.Init(ctx, cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, cfg, nil
}
