// Package migrations applies the SQL schema migrations at startup.
package migrations

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Run applies all pending migrations from path against db. A schema already
// at the latest version is not an error.
func Run(db *sql.DB, path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+path, "pgx_v5", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already up to date")
		return nil
	}
	if err != nil {
		return err
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		logger.Info("schema migrated", "version", version, "dirty", dirty)
	}
	return nil
}
