package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"outreach_backend/internal/assignment/service"
	"outreach_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	continuationDelay   = 2 * time.Second
	continuationTimeout = 2 * time.Minute
	continuationRetries = 3
)

type Client struct {
	client *asynq.Client
	queue  string
	delay  time.Duration
	now    func() time.Time
}

var _ service.ContinuationScheduler = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
		delay:  continuationDelay,
		now:    time.Now,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleContinuation enqueues the next tick of a batch. Requests within
// one delay window share a task ID, so a resume racing the running chain
// does not fork it; the running hop itself is always at least one window
// older than its successor.
func (c *Client) ScheduleContinuation(ctx context.Context, batchID string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewAssignmentContinueTask(AssignmentContinuePayload{BatchID: batchID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(continuationTaskID(batchID, c.now(), c.delay)),
		asynq.ProcessIn(c.delay),
		asynq.Timeout(continuationTimeout),
		asynq.MaxRetry(continuationRetries),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func continuationTaskID(batchID string, at time.Time, window time.Duration) string {
	return fmt.Sprintf("%s:%s:%d", TaskAssignmentContinue, batchID, at.Truncate(window).UnixNano())
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
