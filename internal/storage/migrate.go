// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/channi23/OrangeLens/pkg/types"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate brings the schema of db up to the latest version. Each backend has
// its own migration directory because blob and auto-increment column types
// differ.
func Migrate(db *DB) error {
	var (
		driver database.Driver
		dir    string
		err    error
	)

	switch db.Backend {
	case types.BackendSQLite, "":
		dir = "migrations/sqlite"
		driver, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	case types.BackendMySQL:
		dir = "migrations/mysql"
		driver, err = mysql.WithInstance(db.DB, &mysql.Config{})
	case types.BackendPostgres:
		dir = "migrations/postgres"
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		return fmt.Errorf("migrations are not supported for backend %q", db.Backend)
	}
	if err != nil {
		return fmt.Errorf("creating %s migrate driver: %w", db.Backend, err)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("accessing migrations directory: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	// m.Close would also close db, so only the source is released.
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, "truthlens", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %d; fix it manually or force the version", version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
