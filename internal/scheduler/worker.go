package scheduler

import (
	"context"
	"fmt"
	"strings"

	"outreach_backend/internal/assignment/service"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// AssignmentRunner is the single-process run driver.
type AssignmentRunner interface {
	RunDailyAssignment(ctx context.Context, opts service.RunOptions) (service.RunResult, error)
	ContinueBatch(ctx context.Context, batchID string) (service.RunResult, error)
}

// AssignmentOrchestrator fans a run out per platform.
type AssignmentOrchestrator interface {
	Orchestrate(ctx context.Context, opts service.OrchestrateOptions) (service.OrchestrationResult, error)
}

type Worker struct {
	server       *asynq.Server
	mux          *asynq.ServeMux
	runner       AssignmentRunner
	orchestrator AssignmentOrchestrator
	mode         string
	log          *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, mode string, runner AssignmentRunner, orchestrator AssignmentOrchestrator, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(mode, runner, orchestrator, log)
	w.server = server
	return w, nil
}

func newWorker(mode string, runner AssignmentRunner, orchestrator AssignmentOrchestrator, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Discard()
	}
	w := &Worker{
		mux:          asynq.NewServeMux(),
		runner:       runner,
		orchestrator: orchestrator,
		mode:         mode,
		log:          log,
	}
	w.mux.HandleFunc(TaskAssignmentDaily, w.handleAssignmentDaily)
	w.mux.HandleFunc(TaskAssignmentContinue, w.handleAssignmentContinue)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleAssignmentDaily starts the daily run. A skipped run (assignment
// disabled) is not an error.
func (w *Worker) handleAssignmentDaily(ctx context.Context, _ *asynq.Task) error {
	if strings.EqualFold(w.mode, config.AssignmentModeSingle) || w.orchestrator == nil {
		result, err := w.runner.RunDailyAssignment(ctx, service.RunOptions{})
		if err != nil {
			return err
		}
		w.log.Info("daily assignment run finished",
			"batch_id", result.BatchID,
			"status", result.Status,
			"processed", result.Stats.Processed,
			"has_more", result.HasMoreToProcess,
			"skipped", result.Skipped)
		return nil
	}

	result, err := w.orchestrator.Orchestrate(ctx, service.OrchestrateOptions{})
	if err != nil {
		return err
	}
	if !result.Success {
		// Retrying would open a second orchestration; the next cron tick picks it up.
		w.log.Error("daily assignment orchestration failed", "orchestration_id", result.OrchestrationID, "platforms", len(result.Platforms))
		return fmt.Errorf("orchestration %s: %w", result.OrchestrationID, asynq.SkipRetry)
	}
	w.log.Info("daily assignment orchestrated",
		"orchestration_id", result.OrchestrationID,
		"platforms", len(result.Platforms),
		"triggered", result.Triggered(),
		"total_candidates", result.TotalCandidates)
	return nil
}

func (w *Worker) handleAssignmentContinue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAssignmentContinuePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.BatchID == "" {
		return fmt.Errorf("empty batch id: %w", asynq.SkipRetry)
	}

	result, err := w.runner.ContinueBatch(ctx, payload.BatchID)
	if err != nil {
		return err
	}
	w.log.Assignment(payload.BatchID, "").Info("assignment continuation finished",
		"status", result.Status,
		"processed", result.Stats.Processed,
		"has_more", result.HasMoreToProcess)
	return nil
}
