// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sharedcache stores binary payloads handed over by share actions
// and serves them back under generated /shared/ paths.
package sharedcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/cachestore"
	"github.com/channi23/OrangeLens/internal/logging"
	"github.com/channi23/OrangeLens/pkg/types"
)

// PathPrefix starts every shared payload key.
const PathPrefix = "/shared/"

// DefaultContentType is recorded when the sharer did not declare one.
const DefaultContentType = "application/octet-stream"

// ErrTooLarge is returned by Put when a payload exceeds MaxBytes.
var ErrTooLarge = errors.New("shared payload too large")

// Cache is the shared-payload cache. It is safe for concurrent use.
type Cache struct {
	store           cachestore.Store
	name            string
	maxBytes        int64
	deleteOnConsume bool
	logger          *zap.Logger
	now             func() time.Time
}

// New returns a Cache that keeps payloads in the cache named name.
func New(store cachestore.Store, name string, cfg types.SharedConfig, logger *zap.Logger) *Cache {
	logger = logging.OrNop(logger)
	return &Cache{
		store:           store,
		name:            name,
		maxBytes:        cfg.MaxBytes,
		deleteOnConsume: cfg.DeleteOnConsume,
		logger:          logger,
		now:             time.Now,
	}
}

// MaxBytes returns the largest payload Put accepts; zero means unlimited.
func (c *Cache) MaxBytes() int64 { return c.maxBytes }

// IsKey reports whether path names a shared payload.
func IsKey(path string) bool {
	return strings.HasPrefix(path, PathPrefix) && len(path) > len(PathPrefix)
}

// NewKey generates a shared payload key: the share time in Unix
// milliseconds plus a random 8-character hex suffix.
func NewKey(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d-%s", PathPrefix, now.UnixMilli(), suffix)
}

// Put stores blob under a freshly generated key and returns the key. The
// entry is marked no-store.
func (c *Cache) Put(ctx context.Context, blob []byte, contentType string) (string, error) {
	if c.maxBytes > 0 && int64(len(blob)) > c.maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(blob), c.maxBytes)
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	h, err := c.store.Open(ctx, c.name)
	if err != nil {
		return "", err
	}
	key := NewKey(c.now())
	if err := h.Put(ctx, key, blob, contentType, types.PolicyNoStore); err != nil {
		return "", err
	}
	c.logger.Debug("stored shared payload",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(blob)))
	return key, nil
}

// Get returns the entry stored under key, or cachestore.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (*types.CacheEntry, error) {
	h, err := c.store.Open(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return h.Match(ctx, key)
}

// Consume returns the entry stored under key and, when configured to,
// removes it. A failed removal is logged; the payload is still returned.
func (c *Cache) Consume(ctx context.Context, key string) (*types.CacheEntry, error) {
	e, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.deleteOnConsume {
		h, err := c.store.Open(ctx, c.name)
		if err == nil {
			err = h.Remove(ctx, key)
		}
		if err != nil {
			c.logger.Warn("could not remove consumed shared payload", zap.String("key", key), zap.Error(err))
		}
	}
	return e, nil
}

// ServeHTTP serves GET and HEAD /shared/<id> from the cache only. A miss,
// or a storage failure, is a 404 with an empty body.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e, err := c.Get(r.Context(), r.URL.Path)
	if err != nil {
		if !errors.Is(err, cachestore.ErrNotFound) {
			c.logger.Error("shared payload lookup failed", zap.String("key", r.URL.Path), zap.Error(err))
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", e.ContentType)
	w.Header().Set("Cache-Control", types.PolicyNoStore.CacheControl())
	w.Header().Set("Content-Length", fmt.Sprint(len(e.Payload)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(e.Payload)
	}
}
