package scheduler

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const defaultAssignmentCron = "0 7 * * 1-5"

// Cron enqueues the daily assignment task on its schedule.
type Cron struct {
	scheduler *asynq.Scheduler
	spec      string
	log       *logger.Logger
}

func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	spec := cfg.GetAssignmentCron()
	if spec == "" {
		spec = defaultAssignmentCron
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register(spec, NewAssignmentDailyTask(),
		asynq.Queue(queueName(cfg)),
		asynq.Unique(time.Hour),
		asynq.MaxRetry(1),
	); err != nil {
		return nil, fmt.Errorf("register %s: %w", TaskAssignmentDaily, err)
	}

	return &Cron{scheduler: scheduler, spec: spec, log: log}, nil
}

func (c *Cron) Run(ctx context.Context) {
	if c == nil || c.scheduler == nil {
		return
	}

	if err := c.scheduler.Start(); err != nil {
		c.log.Error("assignment cron failed to start", "error", err)
		return
	}
	c.log.Info("assignment cron started", "spec", c.spec)

	<-ctx.Done()
	c.scheduler.Shutdown()
}
