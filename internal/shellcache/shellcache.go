// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package shellcache installs the application shell into a versioned
// cache, serves it cache-first, and garbage-collects cache names left
// behind by earlier versions.
package shellcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/channi23/OrangeLens/internal/cachestore"
	"github.com/channi23/OrangeLens/internal/logging"
	"github.com/channi23/OrangeLens/pkg/types"
)

// ActivationReport summarises one activation.
type ActivationReport struct {
	Deleted    []string `json:"deleted"`
	Kept       []string `json:"kept"`
	Generation int64    `json:"generation"`
}

// Cache is the static application shell cache.
type Cache struct {
	store        cachestore.Store
	names        types.CacheNames
	manifest     []string
	fetcher      Fetcher
	ignoreSearch bool
	passthrough  http.Handler
	logger       *zap.Logger

	generation atomic.Int64
	current    atomic.Pointer[cachestore.Handle]
}

// New returns a shell cache. fetcher may be nil when only serving;
// passthrough may be nil, in which case misses answer 504.
func New(store cachestore.Store, names types.CacheNames, cfg types.ShellConfig, fetcher Fetcher, passthrough http.Handler, logger *zap.Logger) *Cache {
	logger = logging.OrNop(logger)
	return &Cache{
		store:        store,
		names:        names,
		manifest:     append([]string(nil), cfg.Assets...),
		fetcher:      fetcher,
		ignoreSearch: cfg.IgnoreSearch,
		passthrough:  passthrough,
		logger:       logger,
	}
}

// Manifest returns the install manifest.
func (c *Cache) Manifest() []string {
	return append([]string(nil), c.manifest...)
}

// Generation returns how many activations have taken over serving.
func (c *Cache) Generation() int64 {
	return c.generation.Load()
}

// Install fetches every manifest asset concurrently and writes them into
// the static cache. A failed fetch aborts before anything is written; a
// failed write drops the static cache again so it is never left partial.
// It returns the number of assets installed.
func (c *Cache) Install(ctx context.Context) (int, error) {
	if c.fetcher == nil {
		return 0, errors.New("shell install needs an origin or a build directory")
	}

	assets := make([]*Asset, len(c.manifest))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range c.manifest {
		g.Go(func() error {
			a, err := c.fetcher.Fetch(gctx, p)
			if err != nil {
				return err
			}
			assets[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("installing shell: %w", err)
	}

	h, err := c.store.Open(ctx, c.names.Static)
	if err != nil {
		return 0, fmt.Errorf("installing shell: %w", err)
	}
	for _, a := range assets {
		if err := h.Put(ctx, a.Path, a.Body, a.ContentType, types.PolicyRetained); err != nil {
			if _, derr := c.store.Delete(ctx, c.names.Static); derr != nil {
				c.logger.Error("could not drop partial shell cache", zap.String("cache", c.names.Static), zap.Error(derr))
			}
			return 0, fmt.Errorf("installing shell asset %s: %w", a.Path, err)
		}
	}

	c.logger.Info("shell installed", zap.String("cache", c.names.Static), zap.Int("assets", len(assets)))
	return len(assets), nil
}

// Activate deletes every cache name outside the current allow-list and
// then takes over serving with the current static cache.
func (c *Cache) Activate(ctx context.Context) (ActivationReport, error) {
	var report ActivationReport

	names, err := c.store.Keys(ctx)
	if err != nil {
		return report, fmt.Errorf("listing caches: %w", err)
	}
	for _, name := range names {
		if c.names.IsCurrent(name) {
			report.Kept = append(report.Kept, name)
			continue
		}
		if _, err := c.store.Delete(ctx, name); err != nil {
			return report, fmt.Errorf("deleting cache %s: %w", name, err)
		}
		report.Deleted = append(report.Deleted, name)
	}

	h, err := c.store.Open(ctx, c.names.Static)
	if err != nil {
		return report, fmt.Errorf("opening %s: %w", c.names.Static, err)
	}
	c.current.Store(h)
	report.Generation = c.generation.Add(1)

	c.logger.Info("caches activated",
		zap.Strings("deleted", report.Deleted),
		zap.Strings("kept", report.Kept),
		zap.Int64("generation", report.Generation))
	return report, nil
}

func (c *Cache) handle(ctx context.Context) (*cachestore.Handle, error) {
	if h := c.current.Load(); h != nil {
		return h, nil
	}
	return c.store.Open(ctx, c.names.Static)
}

// Key returns the cache key a request is looked up under.
func (c *Cache) Key(r *http.Request) string {
	if c.ignoreSearch || r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

// ServeHTTP answers from the static cache when possible and forwards misses
// to the passthrough without storing the network response.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e, err := c.lookup(r)
	if err == nil {
		w.Header().Set("Content-Type", e.ContentType)
		if cc := e.StoragePolicy.CacheControl(); cc != "" {
			w.Header().Set("Cache-Control", cc)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(e.Payload)))
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write(e.Payload)
		}
		return
	}
	if !errors.Is(err, cachestore.ErrNotFound) {
		c.logger.Warn("shell cache lookup failed", zap.String("path", r.URL.Path), zap.Error(err))
	}

	w.Header().Set("X-Cache", "MISS")
	if c.passthrough == nil {
		w.WriteHeader(http.StatusGatewayTimeout)
		return
	}
	c.passthrough.ServeHTTP(w, r)
}

func (c *Cache) lookup(r *http.Request) (*types.CacheEntry, error) {
	h, err := c.handle(r.Context())
	if err != nil {
		return nil, err
	}
	return h.Match(r.Context(), c.Key(r))
}
