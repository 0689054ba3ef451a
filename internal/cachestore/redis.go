// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/channi23/OrangeLens/pkg/types"
)

// DefaultRedisPrefix namespaces every key the store writes.
const DefaultRedisPrefix = "truthlens:cache:"

// RedisStore keeps cache names in a set and each cache's entries in a hash
// keyed by entry key, with JSON-encoded values.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil) // Compile-time check

// NewRedisStore connects to the redis:// URL and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStoreFromClient(rdb, DefaultRedisPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) namesKey() string { return s.prefix + "names" }

func (s *RedisStore) entriesKey(name string) string { return s.prefix + "entries:" + name }

// Open implements Store.
func (s *RedisStore) Open(ctx context.Context, name string) (*Handle, error) {
	if name == "" {
		return nil, &StorageError{Op: "open", Err: errors.New("empty cache name")}
	}
	if err := s.rdb.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		return nil, storageErr("open", err)
	}
	return &Handle{name: name, b: s}, nil
}

// Keys implements Store.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	names, err := s.rdb.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, storageErr("keys", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.SRem(ctx, s.namesKey(), name)
		p.Del(ctx, s.entriesKey(name))
		return nil
	})
	if err != nil {
		return false, storageErr("delete", err)
	}
	return removed.Val() > 0, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) put(ctx context.Context, e *types.CacheEntry) error {
	stored := *e
	stored.CreatedAt = s.now().UTC()
	data, err := json.Marshal(&stored)
	if err != nil {
		return storageErr("put", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, s.namesKey(), e.CacheName)
		p.HSet(ctx, s.entriesKey(e.CacheName), e.Key, data)
		return nil
	})
	return storageErr("put", err)
}

func (s *RedisStore) match(ctx context.Context, name, key string) (*types.CacheEntry, error) {
	data, err := s.rdb.HGet(ctx, s.entriesKey(name), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, storageErr("match", err)
	}
	var e types.CacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, storageErr("match", fmt.Errorf("decoding entry %s: %w", key, err))
	}
	return &e, nil
}

func (s *RedisStore) remove(ctx context.Context, name, key string) error {
	return storageErr("remove", s.rdb.HDel(ctx, s.entriesKey(name), key).Err())
}

func (s *RedisStore) entries(ctx context.Context, name string) ([]string, error) {
	keys, err := s.rdb.HKeys(ctx, s.entriesKey(name)).Result()
	if err != nil {
		return nil, storageErr("entries", err)
	}
	sort.Strings(keys)
	return keys, nil
}
