package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/service"
)

// SweepLeaseKey is the lease shared by every replica running the sweep.
const SweepLeaseKey = "helpdesk:sla-sweep:lease"

// Locker grants a time-limited exclusive lease.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Sweeper runs one sweep cycle.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// SweepWorker runs the breach sweep on a fixed interval.
type SweepWorker struct {
	sweeper  Sweeper
	locker   Locker
	interval time.Duration
	lease    time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// SweepWorkerConfig bundles worker settings.
type SweepWorkerConfig struct {
	Interval time.Duration
	Lease    time.Duration
	Locker   Locker
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewSweepWorker builds the worker. A nil Locker runs every cycle locally.
func NewSweepWorker(sweeper Sweeper, cfg SweepWorkerConfig) *SweepWorker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	lease := cfg.Lease
	if lease <= 0 {
		lease = interval
	}
	return &SweepWorker{
		sweeper:  sweeper,
		locker:   cfg.Locker,
		interval: interval,
		lease:    lease,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla sweep worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single leased sweep cycle. Failures are logged and
// left for the next cycle.
func (w *SweepWorker) RunOnce(ctx context.Context) {
	if w.locker != nil {
		ok, err := w.locker.Acquire(ctx, SweepLeaseKey, w.lease)
		switch {
		case err != nil:
			w.logger.Warn("sweep lease unavailable; sweeping without it", zap.Error(err))
		case !ok:
			w.metrics.RecordSweepSkipped()
			w.logger.Debug("sweep lease held elsewhere")
			return
		}
	}

	result, err := w.sweeper.Sweep(ctx)
	w.metrics.RecordSweep(w.now(), result.Escalated, result.AutoClosed, result.Conflicts, result.Failed, err)
	if err != nil {
		w.logger.Error("sla sweep failed", zap.Error(err))
		return
	}
	if result.Escalated > 0 || result.AutoClosed > 0 || result.Failed > 0 {
		w.logger.Info("sla sweep completed",
			zap.Int("scanned", result.Scanned),
			zap.Int("escalated", result.Escalated),
			zap.Int("auto_closed", result.AutoClosed),
			zap.Int("conflicts", result.Conflicts),
			zap.Int("failed", result.Failed))
	}
}
