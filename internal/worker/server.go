// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/channi23/OrangeLens/internal/cachestore"
	"github.com/channi23/OrangeLens/internal/httputil"
	"github.com/channi23/OrangeLens/internal/logging"
	"github.com/channi23/OrangeLens/internal/offlinequeue"
	"github.com/channi23/OrangeLens/internal/sharedcache"
	"github.com/channi23/OrangeLens/internal/sharetarget"
	"github.com/channi23/OrangeLens/internal/shellcache"
	"github.com/channi23/OrangeLens/internal/verify"
	"github.com/channi23/OrangeLens/pkg/types"
)

const defaultShutdownTimeout = 15 * time.Second

// Server owns every edge component and serves them over HTTP.
type Server struct {
	cfg    types.Config
	logger *zap.Logger

	Store   cachestore.Store
	Queue   *offlinequeue.Queue
	Client  *verify.Client
	Shell   *shellcache.Cache
	Shared  *sharedcache.Cache
	Syncer  *offlinequeue.Syncer
	Monitor *offlinequeue.Monitor

	handler http.Handler
}

// New opens the stores named by cfg and wires the edge components. Close
// releases them.
func New(ctx context.Context, cfg types.Config, logger *zap.Logger) (*Server, error) {
	logger = logging.OrNop(logger)

	store, err := cachestore.New(ctx, cfg.Cache.StorageConfig)
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	queue, err := offlinequeue.Open(ctx, cfg.Queue, logger.Named("queue"))
	if err != nil {
		store.Close()
		return nil, err
	}

	shell, passthrough, err := NewShell(store, cfg, logger.Named("shell"))
	if err != nil {
		queue.Close()
		store.Close()
		return nil, err
	}

	client := verify.NewClient(cfg.Verify, logger.Named("verify"))
	shared := sharedcache.New(store, cfg.Cache.Names.Shared, cfg.Shared, logger.Named("shared"))

	syncer := offlinequeue.NewSyncer(logger.Named("sync"))
	syncer.Register(offlinequeue.TagBackgroundVerify, offlinequeue.DrainFunc(queue, client, logger.Named("sync")))

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		Store:   store,
		Queue:   queue,
		Client:  client,
		Shell:   shell,
		Shared:  shared,
		Syncer:  syncer,
		Monitor: offlinequeue.NewMonitor(client, syncer, cfg.Queue.ProbeInterval, logger.Named("monitor")),
	}
	s.handler = NewRouter(Handlers{
		ShareTarget: sharetarget.New(shared, shared.MaxBytes(), logger.Named("share")),
		Shared:      shared,
		Verify:      NewVerifyHandler(client, queue, shared, cfg.Verify, logger.Named("verify")),
		Sync:        NewSyncHandler(syncer),
		Cache:       shell,
		Passthrough: passthrough,
	}, logger.Named("http"))
	return s, nil
}

// NewShell builds the shell cache for cfg together with the origin
// passthrough, which is nil when no origin is configured. Assets install
// from shell.dir when set, else from shell.origin.
func NewShell(store cachestore.Store, cfg types.Config, logger *zap.Logger) (*shellcache.Cache, http.Handler, error) {
	logger = logging.OrNop(logger)

	var (
		fetcher     shellcache.Fetcher
		passthrough http.Handler
	)
	if cfg.Shell.Origin != "" {
		p, err := shellcache.NewPassthrough(cfg.Shell.Origin, logger)
		if err != nil {
			return nil, nil, err
		}
		passthrough = p
		fetcher = &shellcache.HTTPFetcher{
			Origin:     cfg.Shell.Origin,
			Client:     httputil.NewClient(cfg.Verify.HTTPConfig),
			MaxRetries: cfg.Verify.MaxRetries,
		}
	}
	if cfg.Shell.Dir != "" {
		fetcher = &shellcache.DirFetcher{Dir: cfg.Shell.Dir}
	}
	return shellcache.New(store, cfg.Cache.Names, cfg.Shell, fetcher, passthrough, logger), passthrough, nil
}

// Handler returns the edge router.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve installs the shell when configured to, activates the current
// caches, then serves on ln alongside the connectivity monitor. When ctx
// is done the server shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.Shell.InstallOnStart {
		if _, err := s.Shell.Install(ctx); err != nil {
			ln.Close()
			return err
		}
	}
	if _, err := s.Shell.Activate(ctx); err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
	}
	shutdownTimeout := s.cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("edge server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.logger.Info("edge server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the cache store and the queue database.
func (s *Server) Close() error {
	return errors.Join(s.Queue.Close(), s.Store.Close())
}
