// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cachestore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channi23/OrangeLens/internal/storage"
	"github.com/channi23/OrangeLens/pkg/types"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("open creates name", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Open(ctx, "truthlens-v1")
		require.NoError(t, err)

		names, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"truthlens-v1"}, names)
	})

	t.Run("put then match", func(t *testing.T) {
		s := newStore(t)
		h, err := s.Open(ctx, "static")
		require.NoError(t, err)

		payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
		require.NoError(t, h.Put(ctx, "/shared/1-abc", payload, "image/png", types.PolicyNoStore))

		e, err := h.Match(ctx, "/shared/1-abc")
		require.NoError(t, err)
		assert.Equal(t, payload, e.Payload)
		assert.Equal(t, "image/png", e.ContentType)
		assert.Equal(t, types.PolicyNoStore, e.StoragePolicy)
		assert.Equal(t, "static", e.CacheName)
		assert.Equal(t, "/shared/1-abc", e.Key)
		assert.False(t, e.CreatedAt.IsZero())
	})

	t.Run("put replaces existing key", func(t *testing.T) {
		s := newStore(t)
		h, err := s.Open(ctx, "static")
		require.NoError(t, err)

		require.NoError(t, h.Put(ctx, "/", []byte("old"), "text/html", types.PolicyRetained))
		require.NoError(t, h.Put(ctx, "/", []byte("new"), "text/html; charset=utf-8", types.PolicyRetained))

		e, err := h.Match(ctx, "/")
		require.NoError(t, err)
		assert.Equal(t, "new", string(e.Payload))
		assert.Equal(t, "text/html; charset=utf-8", e.ContentType)

		keys, err := h.Entries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"/"}, keys)
	})

	t.Run("empty payload round trips", func(t *testing.T) {
		s := newStore(t)
		h, err := s.Open(ctx, "static")
		require.NoError(t, err)
		require.NoError(t, h.Put(ctx, "/empty", nil, "", ""))

		e, err := h.Match(ctx, "/empty")
		require.NoError(t, err)
		assert.Empty(t, e.Payload)
		assert.Equal(t, types.PolicyRetained, e.StoragePolicy)
	})

	t.Run("miss returns ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		h, err := s.Open(ctx, "static")
		require.NoError(t, err)

		_, err = h.Match(ctx, "/missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("keys are scoped per cache", func(t *testing.T) {
		s := newStore(t)
		a, err := s.Open(ctx, "a")
		require.NoError(t, err)
		b, err := s.Open(ctx, "b")
		require.NoError(t, err)

		require.NoError(t, a.Put(ctx, "/k", []byte("from-a"), "text/plain", types.PolicyRetained))
		_, err = b.Match(ctx, "/k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("remove deletes one entry", func(t *testing.T) {
		s := newStore(t)
		h, err := s.Open(ctx, "shared")
		require.NoError(t, err)
		require.NoError(t, h.Put(ctx, "/x", []byte("x"), "text/plain", types.PolicyNoStore))
		require.NoError(t, h.Put(ctx, "/y", []byte("y"), "text/plain", types.PolicyNoStore))

		require.NoError(t, h.Remove(ctx, "/x"))
		require.NoError(t, h.Remove(ctx, "/never-there"))

		keys, err := h.Entries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"/y"}, keys)
	})

	t.Run("delete drops name and entries", func(t *testing.T) {
		s := newStore(t)
		old, err := s.Open(ctx, "truthlens-v0")
		require.NoError(t, err)
		require.NoError(t, old.Put(ctx, "/", []byte("stale"), "text/html", types.PolicyRetained))
		_, err = s.Open(ctx, "truthlens-v1")
		require.NoError(t, err)

		existed, err := s.Delete(ctx, "truthlens-v0")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = s.Delete(ctx, "truthlens-v0")
		require.NoError(t, err)
		assert.False(t, existed)

		names, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"truthlens-v1"}, names)

		reopened, err := s.Open(ctx, "truthlens-v0")
		require.NoError(t, err)
		_, err = reopened.Match(ctx, "/")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("keys sorted", func(t *testing.T) {
		s := newStore(t)
		for _, n := range []string{"c", "a", "b"} {
			_, err := s.Open(ctx, n)
			require.NoError(t, err)
		}
		names, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Open(ctx, "")
		var se *StorageError
		assert.True(t, errors.As(err, &se))
	})

	t.Run("concurrent puts", func(t *testing.T) {
		s := newStore(t)
		h, err := s.Open(ctx, "static")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, h.Put(ctx, "/same", []byte{byte(i)}, "application/octet-stream", types.PolicyRetained))
			}(i)
		}
		wg.Wait()

		e, err := h.Match(ctx, "/same")
		require.NoError(t, err)
		assert.Len(t, e.Payload, 1)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLStore_SQLite(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return openSQLite(t, filepath.Join(t.TempDir(), "cache.db"))
	})
}

func TestSQLStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s := openSQLite(t, path)
	h, err := s.Open(ctx, "truthlens-shared-v1")
	require.NoError(t, err)
	require.NoError(t, h.Put(ctx, "/shared/1-a", []byte("img"), "image/jpeg", types.PolicyNoStore))
	require.NoError(t, s.Close())

	s = openSQLite(t, path)
	h, err = s.Open(ctx, "truthlens-shared-v1")
	require.NoError(t, err)
	e, err := h.Match(ctx, "/shared/1-a")
	require.NoError(t, err)
	assert.Equal(t, "img", string(e.Payload))
}

func TestSQLStore_ClosedDatabaseIsStorageError(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, filepath.Join(t.TempDir(), "cache.db"))
	h, err := s.Open(ctx, "static")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = h.Match(ctx, "/")
	var se *StorageError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "match", se.Op)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, types.StorageConfig{Backend: types.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(ctx, types.StorageConfig{Backend: types.BackendSQLite, DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, types.StorageConfig{Backend: "etcd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported cache backend")
}

func openSQLite(t *testing.T, path string) *SQLStore {
	t.Helper()
	db, err := storage.Open(context.Background(), types.StorageConfig{Backend: types.BackendSQLite, DSN: path})
	require.NoError(t, err)
	s := NewSQLStore(db)
	t.Cleanup(func() { s.Close() })
	return s
}
