// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storage opens the SQL databases behind the cache store and the
// offline queue and keeps their schema migrated.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/channi23/OrangeLens/pkg/types"
)

// DefaultSQLitePath is used when the SQLite backend is selected without a DSN.
const DefaultSQLitePath = "data/truthlens.db"

// DB is a database handle that knows its SQL dialect.
type DB struct {
	*sql.DB
	Backend types.StorageBackend
}

// Open connects to the configured SQL backend, verifies the connection and
// applies pending migrations.
func Open(ctx context.Context, cfg types.StorageConfig) (*DB, error) {
	driverName, dsn, err := driverDSN(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Backend, err)
	}
	if cfg.Backend == types.BackendSQLite {
		// A single connection avoids "database is locked" under concurrent writers.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Backend, err)
	}

	db := &DB{DB: sqlDB, Backend: cfg.Backend}
	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func driverDSN(cfg types.StorageConfig) (string, string, error) {
	switch cfg.Backend {
	case types.BackendSQLite, "":
		path := cfg.DSN
		if path == "" {
			path = DefaultSQLitePath
		}
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", "", fmt.Errorf("creating database directory: %w", err)
			}
		}
		if !strings.Contains(path, "?") {
			path += "?_journal_mode=WAL&_busy_timeout=5000"
		}
		return "sqlite3", path, nil

	case types.BackendMySQL:
		// user:password@tcp(host:port)/dbname
		mcfg, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", "", fmt.Errorf("parsing MySQL DSN: %w", err)
		}
		// Migration files hold several statements each.
		mcfg.MultiStatements = true
		mcfg.ParseTime = true
		return "mysql", mcfg.FormatDSN(), nil

	case types.BackendPostgres:
		// host=localhost port=5432 user=postgres dbname=truthlens, or a postgres:// URL
		if cfg.DSN == "" {
			return "", "", fmt.Errorf("postgres backend requires a DSN")
		}
		return "pgx", cfg.DSN, nil

	default:
		return "", "", fmt.Errorf("unsupported SQL backend: %q (must be sqlite, mysql, or postgres)", cfg.Backend)
	}
}

// Rebind rewrites ? placeholders into the backend's placeholder syntax.
func (db *DB) Rebind(query string) string {
	if db.Backend != types.BackendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertReturningID executes an INSERT and returns the generated id column.
func (db *DB) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if db.Backend == types.BackendPostgres {
		var id int64
		err := db.QueryRowContext(ctx, db.Rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
