// Package assignment provides the contact-to-campaign assignment bounded context.
package assignment

import (
	"outreach_backend/internal/assignment/dispatch"
	"outreach_backend/internal/assignment/handler"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/internal/assignment/service"
	"outreach_backend/internal/blocklist"
	"outreach_backend/internal/campaigns"
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Deps are the shared dependencies the module is built from.
type Deps struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	// Scheduler enqueues continuations; nil leaves unfinished batches to the next trigger.
	Scheduler service.ContinuationScheduler
	Bus       events.Bus
	Config    *config.Config
	Validator *validator.Validator
	Log       *logger.Logger
}

// Module is the assignment bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	runner       *service.Runner
	orchestrator *service.Orchestrator
	logs         *service.LogService
	blocklist    *blocklist.Filter
	mode         string
}

// NewModule wires the repository, worker, runner and orchestrator.
func NewModule(deps Deps) *Module {
	cfg := deps.Config
	repo := repository.New(deps.Pool)

	filter := blocklist.NewFilter(blocklist.NewRepository(deps.Pool), deps.Redis, cfg.GetBlocklistCacheTTL(), deps.Log)
	assigner := campaigns.NewClient(cfg, deps.Log)
	selector := service.NewSelector(repo)

	worker := service.NewWorker(service.WorkerDeps{
		Ledger:    repo,
		Selector:  selector,
		Companies: repo,
		Blocklist: filter,
		Assigner:  assigner,
		Bus:       deps.Bus,
		Log:       deps.Log,
	})
	runner := service.NewRunner(service.RunnerDeps{
		Settings:   repo,
		Ledger:     repo,
		Candidates: repo,
		Selector:   selector,
		Worker:     worker,
		Assigner:   assigner,
		Scheduler:  deps.Scheduler,
		Log:        deps.Log,
	}, service.RunnerConfig{
		ChunkSize:     cfg.GetChunkSize(),
		TimeBudget:    cfg.GetWorkerTimeBudget(),
		MaxIterations: cfg.GetMaxIterations(),
	})

	dispatcher := dispatch.NewHTTPDispatcher(cfg.GetWorkerBaseURL(), cfg.GetCronSecret(), cfg.GetDispatchTimeout(), deps.Log)
	orchestrator := service.NewOrchestrator(repo, selector, dispatcher, deps.Bus, cfg.GetChunkSize(), deps.Log)
	logs := service.NewLogService(repo)

	h := handler.New(handler.Services{
		Runner:       runner,
		Orchestrator: orchestrator,
		Batches:      service.NewBatchService(repo, deps.Scheduler, deps.Bus, deps.Log),
		Settings:     service.NewSettingsService(repo),
		Logs:         logs,
		Blocklist:    filter,
	}, deps.Validator)

	return &Module{
		handler:      h,
		runner:       runner,
		orchestrator: orchestrator,
		logs:         logs,
		blocklist:    filter,
		mode:         cfg.GetAssignmentMode(),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignment"
}

// Runner returns the run driver for the scheduler.
func (m *Module) Runner() *service.Runner {
	return m.runner
}

// Orchestrator returns the fan-out orchestrator for the scheduler.
func (m *Module) Orchestrator() *service.Orchestrator {
	return m.orchestrator
}

// Logs returns the log service for retention jobs.
func (m *Module) Logs() *service.LogService {
	return m.logs
}

// Blocklist returns the cached blocklist filter.
func (m *Module) Blocklist() *blocklist.Filter {
	return m.blocklist
}

// Mode is the configured assignment mode (fanout or single).
func (m *Module) Mode() string {
	return m.mode
}

// RegisterRoutes mounts assignment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected, ctx.Admin)
}
