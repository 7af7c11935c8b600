package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/mkravets/shortener/internal/config"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationsSource points at the SQL migrations shipped with the binary,
// relative to its working directory.
const migrationsSource = "file://migrations"

// RunMigrations applies any pending migrations to the configured database.
// An already up-to-date schema is not an error.
func RunMigrations(cfg config.Postgres) error {
	const op = "postgres.RunMigrations"

	m, err := migrate.New(migrationsSource, cfg.DSN())
	if err != nil {
		return fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return nil
}
