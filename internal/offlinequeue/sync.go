// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package offlinequeue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/logging"
)

// TagBackgroundVerify is the sync tag that drains the offline queue.
const TagBackgroundVerify = "background-verify"

// ErrUnknownTag is returned by Fire for a tag nobody registered.
var ErrUnknownTag = errors.New("unknown sync tag")

// SyncFunc runs the work behind one sync tag.
type SyncFunc func(ctx context.Context) error

// Syncer maps sync tags to the work they trigger.
type Syncer struct {
	mu       sync.RWMutex
	handlers map[string]SyncFunc
	logger   *zap.Logger
}

// NewSyncer returns an empty Syncer.
func NewSyncer(logger *zap.Logger) *Syncer {
	logger = logging.OrNop(logger)
	return &Syncer{handlers: make(map[string]SyncFunc), logger: logger}
}

// Register binds fn to tag, replacing any earlier binding.
func (s *Syncer) Register(tag string, fn SyncFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[tag] = fn
}

// Tags returns the registered tags, sorted.
func (s *Syncer) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := make([]string, 0, len(s.handlers))
	for t := range s.handlers {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Fire runs the work registered for tag and returns its error.
func (s *Syncer) Fire(ctx context.Context, tag string) error {
	s.mu.RLock()
	fn, ok := s.handlers[tag]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}

	s.logger.Debug("sync fired", zap.String("tag", tag))
	if err := fn(ctx); err != nil {
		s.logger.Warn("sync failed", zap.String("tag", tag), zap.Error(err))
		return err
	}
	return nil
}

// DrainFunc adapts a Queue drain through sub into a SyncFunc. A drain that
// stops on a failed replay is not an error; the item stays queued.
func DrainFunc(q *Queue, sub Submitter, logger *zap.Logger) SyncFunc {
	logger = logging.OrNop(logger)
	return func(ctx context.Context) error {
		report, err := q.Drain(ctx, sub)
		logger.Info("offline queue drained",
			zap.Int("delivered", report.Delivered),
			zap.Int("dropped", report.Dropped),
			zap.Int("remaining", report.Remaining),
			zap.Bool("deferred", report.Deferred),
			zap.String("last_error", report.LastError))
		return err
	}
}
