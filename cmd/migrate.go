package cmd

import (
	"fmt"

	"github.com/aqlhr/askaql/db"
	"github.com/aqlhr/askaql/internal/config"
	"github.com/aqlhr/askaql/internal/log"
)

// runMigrate applies all pending database migrations and exits.
func runMigrate(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ParseDatabaseURL(); err != nil {
		return fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	logger.Info("applying migrations",
		"host", cfg.PostgresHost,
		"database", cfg.PostgresDBName,
	)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
