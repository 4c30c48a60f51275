// Package db provides embedded database migrations.
package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx v5 driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending migrations from the embedded filesystem.
// golang-migrate tracks applied versions in schema_migrations.
//
// connURL must be a postgres:// or postgresql:// URL.
func Migrate(connURL string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	dbURL, err := convertToMigrateURL(connURL)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			slog.Warn("closing migration source", "error", srcErr)
		}
		if dbErr != nil {
			slog.Warn("closing migration database connection", "error", dbErr)
		}
	}()

	version, dirty, verErr := m.Version()
	if verErr != nil && !errors.Is(verErr, migrate.ErrNilVersion) {
		return fmt.Errorf("checking migration version: %w", verErr)
	}
	if dirty {
		return fmt.Errorf("database in dirty state (version=%d), manual cleanup required", version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("no new migrations to apply")
			return nil
		}
		return fmt.Errorf("running migrations: %w", err)
	}

	if finalVersion, _, err := m.Version(); err == nil {
		slog.Info("migrations completed", "version", finalVersion)
	}
	return nil
}

// convertToMigrateURL rewrites a postgres:// URL to the pgx5:// scheme
// expected by golang-migrate's pgx v5 driver.
func convertToMigrateURL(connURL string) (string, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return "", fmt.Errorf("parsing database URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		u.Scheme = "pgx5"
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported database URL scheme: %s (expected postgres or postgresql)", u.Scheme)
	}
}
