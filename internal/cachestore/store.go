// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cachestore provides named key/blob caches with content type and
// storage policy metadata. Cache names are versioned by the caller; the
// store itself only creates, enumerates and drops them.
package cachestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/channi23/OrangeLens/internal/storage"
	"github.com/channi23/OrangeLens/pkg/types"
)

// ErrNotFound is returned by Match when the key is absent from the cache.
var ErrNotFound = errors.New("cache entry not found")

// StorageError wraps a failure of the underlying storage backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Store manages named caches.
type Store interface {
	// Open returns a handle to the named cache, creating it if missing.
	Open(ctx context.Context, name string) (*Handle, error)

	// Keys returns the names of all existing caches, sorted.
	Keys(ctx context.Context) ([]string, error)

	// Delete drops the named cache and all its entries. It reports whether
	// the cache existed.
	Delete(ctx context.Context, name string) (bool, error)

	Close() error
}

// backend is the per-entry surface a Store exposes to its handles.
type backend interface {
	put(ctx context.Context, e *types.CacheEntry) error
	match(ctx context.Context, name, key string) (*types.CacheEntry, error)
	remove(ctx context.Context, name, key string) error
	entries(ctx context.Context, name string) ([]string, error)
}

// Handle addresses one named cache.
type Handle struct {
	name string
	b    backend
}

// Name returns the cache name the handle addresses.
func (h *Handle) Name() string { return h.name }

// Put inserts or replaces the entry stored under key.
func (h *Handle) Put(ctx context.Context, key string, payload []byte, contentType string, policy types.StoragePolicy) error {
	if key == "" {
		return &StorageError{Op: "put", Err: errors.New("empty key")}
	}
	if policy == "" {
		policy = types.PolicyRetained
	}
	return h.b.put(ctx, &types.CacheEntry{
		CacheName:     h.name,
		Key:           key,
		Payload:       cloneBytes(payload),
		ContentType:   contentType,
		StoragePolicy: policy,
	})
}

// Match returns the entry stored under key, or ErrNotFound.
func (h *Handle) Match(ctx context.Context, key string) (*types.CacheEntry, error) {
	return h.b.match(ctx, h.name, key)
}

// Remove deletes the entry stored under key. Removing an absent key is not
// an error.
func (h *Handle) Remove(ctx context.Context, key string) error {
	return h.b.remove(ctx, h.name, key)
}

// Entries returns the keys stored in the cache, sorted.
func (h *Handle) Entries(ctx context.Context) ([]string, error) {
	return h.b.entries(ctx, h.name)
}

// New builds the Store selected by cfg.Backend.
func New(ctx context.Context, cfg types.StorageConfig) (Store, error) {
	switch {
	case cfg.Backend == types.BackendMemory:
		return NewMemoryStore(), nil
	case cfg.Backend == types.BackendRedis:
		return NewRedisStore(ctx, cfg.DSN)
	case cfg.Backend.IsSQL() || cfg.Backend == "":
		db, err := storage.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %q (must be sqlite, mysql, postgres, redis, or memory)", cfg.Backend)
	}
}

// cloneBytes copies b into a non-nil slice; NOT NULL blob columns reject nil.
func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
