// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package offlinequeue

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/channi23/OrangeLens/internal/logging"
)

// Prober checks connectivity to the verification backend.
// *verify.Client implements it.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor polls a Prober and fires a sync tag whenever connectivity comes
// back. The state before the first probe counts as offline, so a monitor
// that starts online fires once.
type Monitor struct {
	prober   Prober
	syncer   *Syncer
	tag      string
	interval time.Duration
	logger   *zap.Logger

	online atomic.Bool
}

// NewMonitor returns a Monitor that fires TagBackgroundVerify on syncer.
func NewMonitor(prober Prober, syncer *Syncer, interval time.Duration, logger *zap.Logger) *Monitor {
	logger = logging.OrNop(logger)
	return &Monitor{
		prober:   prober,
		syncer:   syncer,
		tag:      TagBackgroundVerify,
		interval: interval,
		logger:   logger,
	}
}

// Online reports the result of the last probe.
func (m *Monitor) Online() bool { return m.online.Load() }

// Check probes once and fires the sync tag on an offline to online
// transition. It reports whether the tag was fired.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx := ctx
	if m.interval > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, m.interval)
		defer cancel()
	}
	err := m.prober.Ping(probeCtx)
	now := err == nil
	was := m.online.Swap(now)

	switch {
	case now && !was:
		m.logger.Info("connectivity restored")
		if ferr := m.syncer.Fire(ctx, m.tag); ferr != nil {
			m.logger.Warn("reconnect sync failed", zap.Error(ferr))
		}
		return true
	case !now && was:
		m.logger.Info("connectivity lost", zap.Error(err))
	}
	return false
}

// Run probes every interval until ctx is cancelled. A non-positive
// interval returns immediately.
func (m *Monitor) Run(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
