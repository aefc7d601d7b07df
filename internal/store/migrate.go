package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending schema migrations for the database's dialect.
// An up-to-date schema is not an error.
//
// SQLite migrations run on db itself, since a second handle on the same file would contend for
// the write lock. Postgres migrations use their own connection built from databaseURL.
func Migrate(db *sqlx.DB, databaseURL string) error {
	d := dialectOf(db)
	sub, err := fs.Sub(migrationsFS, "migrations/"+d.String())
	if err != nil {
		return fmt.Errorf("failed to locate %s migrations: %w", d, err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("failed to read %s migrations: %w", d, err)
	}

	var m *migrate.Migrate
	switch d {
	case dialectPostgres:
		m, err = migrate.NewWithSourceInstance("iofs", src, pgxMigrateURL(databaseURL))
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
		// closes the migration connection only
		defer func() { _, _ = m.Close() }()
	default:
		driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
		if err != nil {
			return fmt.Errorf("failed to create sqlite migrate driver: %w", err)
		}
		// m.Close would close db, so m is left to the garbage collector.
		m, err = migrate.NewWithInstance("iofs", src, "sqlite", driver)
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// pgxMigrateURL switches a postgres:// URL to the scheme of the migrate pgx/v5 driver.
func pgxMigrateURL(url string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(url, scheme) {
			return "pgx5://" + strings.TrimPrefix(url, scheme)
		}
	}
	return url
}
