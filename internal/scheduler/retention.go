package scheduler

import (
	"context"
	"time"

	"outreach_backend/platform/logger"
)

const (
	defaultLogRetentionInterval = 6 * time.Hour
	defaultLogRetention         = 180 * 24 * time.Hour
)

// LogPruner deletes assignment log rows older than the cutoff.
type LogPruner interface {
	Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
}

// LogRetention periodically removes assignment log rows of finished batches.
type LogRetention struct {
	pruner    LogPruner
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewLogRetention(pruner LogPruner, log *logger.Logger, interval, retention time.Duration) *LogRetention {
	if interval <= 0 {
		interval = defaultLogRetentionInterval
	}
	if retention <= 0 {
		retention = defaultLogRetention
	}
	if log == nil {
		log = logger.Discard()
	}

	return &LogRetention{
		pruner:    pruner,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (r *LogRetention) Run(ctx context.Context) {
	if r == nil || r.pruner == nil {
		return
	}

	r.cleanup(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanup(ctx)
		}
	}
}

func (r *LogRetention) cleanup(ctx context.Context) {
	deleted, err := r.pruner.Prune(ctx, r.retention, r.now())
	if err != nil {
		r.log.Warn("assignment log retention failed", "error", err)
		return
	}

	if deleted > 0 {
		r.log.Info("assignment log retention deleted rows", "deleted", deleted)
	}
}
