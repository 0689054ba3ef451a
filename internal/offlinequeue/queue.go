// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package offlinequeue keeps verification requests that failed for lack of
// connectivity and replays them, oldest first, when the connection returns.
package offlinequeue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/logging"
	"github.com/channi23/OrangeLens/internal/storage"
	"github.com/channi23/OrangeLens/internal/verify"
	"github.com/channi23/OrangeLens/pkg/types"
)

// maxBackoff caps the wait between replays of the head item.
const maxBackoff = 24 * time.Hour

// Submitter replays one request. *verify.Client implements it.
type Submitter interface {
	Submit(ctx context.Context, req *types.VerificationRequest) (*types.VerificationResult, error)
}

// DrainReport summarises one Drain.
type DrainReport struct {
	Delivered int `json:"delivered"`

	// Dropped counts items discarded by the expiry or attempt-cap policy.
	Dropped int `json:"dropped"`

	// Remaining is the queue length after the drain.
	Remaining int `json:"remaining"`

	// Deferred is set when the head item was still backing off.
	Deferred bool `json:"deferred,omitempty"`

	// LastError is the failure that stopped the drain, if any.
	LastError string `json:"last_error,omitempty"`
}

// Queue is a durable FIFO of verification requests in the offline_queue
// table. Drains are serialized.
type Queue struct {
	db      *storage.DB
	ownsDB  bool
	cfg     types.QueueConfig
	logger  *zap.Logger
	now     func() time.Time
	drainMu sync.Mutex
}

// New returns a Queue over an open, migrated database.
func New(db *storage.DB, cfg types.QueueConfig, logger *zap.Logger) *Queue {
	logger = logging.OrNop(logger)
	return &Queue{db: db, cfg: cfg, logger: logger, now: time.Now}
}

// Open connects to the database named by cfg and returns a Queue that
// closes it on Close.
func Open(ctx context.Context, cfg types.QueueConfig, logger *zap.Logger) (*Queue, error) {
	if !cfg.Backend.IsSQL() && cfg.Backend != "" {
		return nil, fmt.Errorf("offline queue requires a SQL backend, got %q", cfg.Backend)
	}
	db, err := storage.Open(ctx, cfg.StorageConfig)
	if err != nil {
		return nil, fmt.Errorf("opening offline queue: %w", err)
	}
	q := New(db, cfg, logger)
	q.ownsDB = true
	return q, nil
}

// Close releases the database if the Queue opened it.
func (q *Queue) Close() error {
	if q.ownsDB {
		return q.db.Close()
	}
	return nil
}

// Enqueue appends req to the tail of the queue.
func (q *Queue) Enqueue(ctx context.Context, req *types.VerificationRequest) (types.OfflineQueueItem, error) {
	if err := req.Validate(); err != nil {
		return types.OfflineQueueItem{}, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return types.OfflineQueueItem{}, fmt.Errorf("encoding queued request: %w", err)
	}

	now := q.now()
	id, err := q.db.InsertReturningID(ctx,
		`INSERT INTO offline_queue (request, enqueued_at, attempts, last_attempt_at, last_error) VALUES (?, ?, 0, 0, '')`,
		string(data), now.UnixMilli())
	if err != nil {
		return types.OfflineQueueItem{}, fmt.Errorf("enqueueing request: %w", err)
	}

	q.logger.Info("request queued for background sync",
		zap.Int64("id", id),
		zap.String("request_id", req.ID))

	return types.OfflineQueueItem{
		ID:         id,
		Request:    req.Clone(),
		EnqueuedAt: time.UnixMilli(now.UnixMilli()),
	}, nil
}

const selectItems = `SELECT id, request, enqueued_at, attempts, last_attempt_at, last_error FROM offline_queue ORDER BY id`

// List returns every queued item, oldest first. Items whose request can no
// longer be decoded are returned with a nil Request.
func (q *Queue) List(ctx context.Context) ([]types.OfflineQueueItem, error) {
	rows, err := q.db.QueryContext(ctx, selectItems)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	defer rows.Close()

	var items []types.OfflineQueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil && item == nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	return items, nil
}

// Len returns the number of queued items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting queue: %w", err)
	}
	return n, nil
}

// Remove deletes one item. It reports whether the item existed.
func (q *Queue) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, q.db.Rebind(`DELETE FROM offline_queue WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("removing queue item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("removing queue item %d: %w", id, err)
	}
	return n > 0, nil
}

// Purge deletes every item and returns how many there were.
func (q *Queue) Purge(ctx context.Context) (int, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM offline_queue`)
	if err != nil {
		return 0, fmt.Errorf("purging queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purging queue: %w", err)
	}
	return int(n), nil
}

// Drain replays queued items in FIFO order through sub. A delivered item
// is removed and the drain moves on; the first failure is recorded on the
// head item and stops the drain, leaving it and everything behind it in
// place. A 2xx response whose body could not be parsed counts as
// delivered. Items past the configured age or attempt cap are dropped
// before replay, and a head item still inside its backoff window ends the
// drain without a replay.
func (q *Queue) Drain(ctx context.Context, sub Submitter) (DrainReport, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	var report DrainReport
	for {
		if err := ctx.Err(); err != nil {
			return q.finish(ctx, report), err
		}

		item, err := q.head(ctx)
		if err != nil {
			return q.finish(ctx, report), err
		}
		if item == nil {
			break
		}

		if reason := q.dropReason(item); reason != "" {
			if _, err := q.Remove(ctx, item.ID); err != nil {
				return q.finish(ctx, report), err
			}
			report.Dropped++
			q.logger.Warn("dropped queued request",
				zap.Int64("id", item.ID),
				zap.String("reason", reason),
				zap.Int("attempts", item.Attempts))
			continue
		}

		if wait := q.backoffRemaining(item); wait > 0 {
			report.Deferred = true
			q.logger.Debug("queued request backing off",
				zap.Int64("id", item.ID),
				zap.Duration("wait", wait))
			break
		}

		_, err = sub.Submit(ctx, item.Request)
		var (
			parseErr *verify.ParseError
			invalid  *verify.InputValidationError
		)
		if errors.As(err, &invalid) {
			if _, err := q.Remove(ctx, item.ID); err != nil {
				return q.finish(ctx, report), err
			}
			report.Dropped++
			q.logger.Warn("dropped invalid queued request", zap.Int64("id", item.ID), zap.Error(invalid))
			continue
		}
		if err != nil && !errors.As(err, &parseErr) {
			if ctx.Err() != nil {
				return q.finish(ctx, report), ctx.Err()
			}
			if merr := q.markFailed(ctx, item.ID, err); merr != nil {
				return q.finish(ctx, report), merr
			}
			report.LastError = err.Error()
			q.logger.Info("background replay failed",
				zap.Int64("id", item.ID),
				zap.Int("attempts", item.Attempts+1),
				zap.Error(err))
			break
		}

		if _, err := q.Remove(ctx, item.ID); err != nil {
			return q.finish(ctx, report), err
		}
		report.Delivered++
		q.logger.Info("background replay delivered",
			zap.Int64("id", item.ID),
			zap.String("request_id", item.Request.ID))
	}
	return q.finish(ctx, report), nil
}

func (q *Queue) finish(ctx context.Context, report DrainReport) DrainReport {
	// Count without the caller's cancellation so the report stays useful.
	n, err := q.Len(context.WithoutCancel(ctx))
	if err == nil {
		report.Remaining = n
	}
	return report
}

// head returns the oldest item, or nil when the queue is empty.
// Undecodable rows are removed as they surface.
func (q *Queue) head(ctx context.Context) (*types.OfflineQueueItem, error) {
	for {
		row := q.db.QueryRowContext(ctx, selectItems+` LIMIT 1`)
		item, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil && item == nil {
			return nil, err
		}
		if err != nil {
			q.logger.Error("discarding undecodable queued request", zap.Int64("id", item.ID), zap.Error(err))
			if _, rerr := q.Remove(ctx, item.ID); rerr != nil {
				return nil, rerr
			}
			continue
		}
		return item, nil
	}
}

func (q *Queue) dropReason(item *types.OfflineQueueItem) string {
	if q.cfg.MaxAttempts > 0 && item.Attempts >= q.cfg.MaxAttempts {
		return "attempt limit reached"
	}
	if q.cfg.MaxAge > 0 && q.now().Sub(item.EnqueuedAt) > q.cfg.MaxAge {
		return "expired"
	}
	return ""
}

func (q *Queue) backoffRemaining(item *types.OfflineQueueItem) time.Duration {
	if q.cfg.BackoffBase <= 0 || item.Attempts == 0 {
		return 0
	}
	wait := q.cfg.BackoffBase
	for i := 1; i < item.Attempts && wait < maxBackoff; i++ {
		wait *= 2
	}
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return item.LastAttemptAt.Add(wait).Sub(q.now())
}

func (q *Queue) markFailed(ctx context.Context, id int64, cause error) error {
	_, err := q.db.ExecContext(ctx,
		q.db.Rebind(`UPDATE offline_queue SET attempts = attempts + 1, last_attempt_at = ?, last_error = ? WHERE id = ?`),
		q.now().UnixMilli(), cause.Error(), id)
	if err != nil {
		return fmt.Errorf("recording failed replay of item %d: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanItem decodes one row. A row that scans but whose request JSON does
// not decode returns the item together with the error.
func scanItem(s scanner) (*types.OfflineQueueItem, error) {
	var (
		item          types.OfflineQueueItem
		data          string
		enqueued      int64
		lastAttemptAt int64
	)
	if err := s.Scan(&item.ID, &data, &enqueued, &item.Attempts, &lastAttemptAt, &item.LastError); err != nil {
		return nil, err
	}
	item.EnqueuedAt = time.UnixMilli(enqueued)
	if lastAttemptAt > 0 {
		item.LastAttemptAt = time.UnixMilli(lastAttemptAt)
	}

	var req types.VerificationRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return &item, fmt.Errorf("decoding queued request %d: %w", item.ID, err)
	}
	item.Request = &req
	return &item, nil
}
