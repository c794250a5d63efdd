package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuationTaskIDWindows(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	first := continuationTaskID("batch_1", at, continuationDelay)
	assert.Equal(t, first, continuationTaskID("batch_1", at.Add(time.Second), continuationDelay))
	assert.NotEqual(t, first, continuationTaskID("batch_1", at.Add(continuationDelay), continuationDelay))
	assert.NotEqual(t, first, continuationTaskID("batch_2", at, continuationDelay))
}

func TestContinuationReschedulesFromRunningTask(t *testing.T) {
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}

	client := &Client{client: asynq.NewClient(opt), queue: "default", now: time.Now}
	t.Cleanup(func() { _ = client.Close() })

	var hops atomic.Int32
	rescheduled := make(chan error, 1)
	second := make(chan struct{})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskAssignmentContinue, func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseAssignmentContinuePayload(task)
		if err != nil {
			return err
		}
		switch hops.Add(1) {
		case 1:
			rescheduled <- client.ScheduleContinuation(ctx, payload.BatchID)
		case 2:
			close(second)
		}
		return nil
	})

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
		LogLevel:    asynq.FatalLevel,
	})
	require.NoError(t, srv.Start(mux))
	t.Cleanup(srv.Shutdown)

	require.NoError(t, client.ScheduleContinuation(context.Background(), "batch_1"))

	select {
	case err := <-rescheduled:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("first continuation never ran")
	}
	select {
	case <-second:
	case <-time.After(10 * time.Second):
		t.Fatal("continuation scheduled from a running task never ran")
	}
}
