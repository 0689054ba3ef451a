// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/channi23/OrangeLens/internal/storage"
	"github.com/channi23/OrangeLens/pkg/types"
)

// SQLStore keeps caches in the cache_names and cache_entries tables of a
// SQLite, MySQL or PostgreSQL database.
type SQLStore struct {
	db  *storage.DB
	now func() time.Time
}

var _ Store = (*SQLStore)(nil) // Compile-time check

// NewSQLStore wraps an open, migrated database.
func NewSQLStore(db *storage.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Open implements Store.
func (s *SQLStore) Open(ctx context.Context, name string) (*Handle, error) {
	if name == "" {
		return nil, &StorageError{Op: "open", Err: errors.New("empty cache name")}
	}
	if _, err := s.db.ExecContext(ctx, s.ensureNameQuery(), name, s.now().UnixMilli()); err != nil {
		return nil, storageErr("open", err)
	}
	return &Handle{name: name, b: s}, nil
}

// Keys implements Store.
func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM cache_names ORDER BY name`)
	if err != nil {
		return nil, storageErr("keys", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, storageErr("keys", err)
		}
		names = append(names, n)
	}
	return names, storageErr("keys", rows.Err())
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storageErr("delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM cache_entries WHERE cache_name = ?`), name); err != nil {
		return false, storageErr("delete", err)
	}
	res, err := tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM cache_names WHERE name = ?`), name)
	if err != nil {
		return false, storageErr("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete", err)
	}
	if err := tx.Commit(); err != nil {
		return false, storageErr("delete", fmt.Errorf("committing: %w", err))
	}
	return n > 0, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) put(ctx context.Context, e *types.CacheEntry) error {
	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("put", err)
	}
	defer tx.Rollback()

	// The name may have been dropped by an activation since Open.
	if _, err := tx.ExecContext(ctx, s.ensureNameQuery(), e.CacheName, now); err != nil {
		return storageErr("put", err)
	}
	if _, err := tx.ExecContext(ctx, s.upsertEntryQuery(),
		e.CacheName, e.Key, e.Payload, e.ContentType, string(e.StoragePolicy), now); err != nil {
		return storageErr("put", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("put", fmt.Errorf("committing: %w", err))
	}
	return nil
}

func (s *SQLStore) match(ctx context.Context, name, key string) (*types.CacheEntry, error) {
	var (
		e       = types.CacheEntry{CacheName: name, Key: key}
		policy  string
		created int64
	)
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT payload, content_type, storage_policy, created_at
		FROM cache_entries WHERE cache_name = ? AND entry_key = ?`), name, key)
	if err := row.Scan(&e.Payload, &e.ContentType, &policy, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("match", err)
	}
	e.StoragePolicy = types.StoragePolicy(policy)
	e.CreatedAt = time.UnixMilli(created)
	return &e, nil
}

func (s *SQLStore) remove(ctx context.Context, name, key string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM cache_entries WHERE cache_name = ? AND entry_key = ?`), name, key)
	return storageErr("remove", err)
}

func (s *SQLStore) entries(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT entry_key FROM cache_entries WHERE cache_name = ? ORDER BY entry_key`), name)
	if err != nil {
		return nil, storageErr("entries", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, storageErr("entries", err)
		}
		keys = append(keys, k)
	}
	return keys, storageErr("entries", rows.Err())
}

// ensureNameQuery returns the insert-if-missing statement for cache_names.
func (s *SQLStore) ensureNameQuery() string {
	switch s.db.Backend {
	case types.BackendMySQL:
		return `INSERT IGNORE INTO cache_names (name, created_at) VALUES (?, ?)`
	default: // SQLite and PostgreSQL
		return s.db.Rebind(`INSERT INTO cache_names (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`)
	}
}

// upsertEntryQuery returns the UPSERT statement for cache_entries.
func (s *SQLStore) upsertEntryQuery() string {
	switch s.db.Backend {
	case types.BackendMySQL:
		return `INSERT INTO cache_entries (cache_name, entry_key, payload, content_type, storage_policy, created_at)
			VALUES (?, ?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE payload = new.payload, content_type = new.content_type,
				storage_policy = new.storage_policy, created_at = new.created_at`
	default: // SQLite and PostgreSQL
		return s.db.Rebind(`INSERT INTO cache_entries (cache_name, entry_key, payload, content_type, storage_policy, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (cache_name, entry_key) DO UPDATE SET payload = excluded.payload,
				content_type = excluded.content_type, storage_policy = excluded.storage_policy,
				created_at = excluded.created_at`)
	}
}
