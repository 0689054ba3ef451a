// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cachestore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/channi23/OrangeLens/pkg/types"
)

// MemoryStore keeps caches in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	caches map[string]map[string]types.CacheEntry
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil) // Compile-time check

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		caches: make(map[string]map[string]types.CacheEntry),
		now:    time.Now,
	}
}

// Open implements Store.
func (s *MemoryStore) Open(_ context.Context, name string) (*Handle, error) {
	if name == "" {
		return nil, &StorageError{Op: "open", Err: errors.New("empty cache name")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.caches[name]; !ok {
		s.caches[name] = make(map[string]types.CacheEntry)
	}
	return &Handle{name: name, b: s}, nil
}

// Keys implements Store.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.caches))
	for n := range s.caches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.caches[name]
	delete(s.caches, name)
	return ok, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) put(_ context.Context, e *types.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[e.CacheName]
	if !ok {
		c = make(map[string]types.CacheEntry)
		s.caches[e.CacheName] = c
	}
	stored := *e
	stored.CreatedAt = s.now()
	c[e.Key] = stored
	return nil
}

func (s *MemoryStore) match(_ context.Context, name, key string) (*types.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.caches[name][key]
	if !ok {
		return nil, ErrNotFound
	}
	e.Payload = cloneBytes(e.Payload)
	return &e, nil
}

func (s *MemoryStore) remove(_ context.Context, name, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caches[name], key)
	return nil
}

func (s *MemoryStore) entries(_ context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.caches[name]))
	for k := range s.caches[name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
