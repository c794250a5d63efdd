package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/internal/assignment/service"
	"outreach_backend/internal/assignment/transport"
	"outreach_backend/internal/campaigns"
	"outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySettings struct {
	settings domain.Settings
}

func (m *memorySettings) GetSettings(context.Context) (domain.Settings, error) {
	return m.settings, nil
}

func (m *memorySettings) UpsertSettings(_ context.Context, s domain.Settings) (domain.Settings, error) {
	m.settings = s
	return s, nil
}

type staticCandidates struct {
	candidates []domain.Candidate
}

func (s staticCandidates) ListEligible(context.Context, repository.CandidateQuery) ([]domain.Candidate, error) {
	return s.candidates, nil
}

func (staticCandidates) CompanyEligibility(context.Context, uuid.UUID) (repository.CompanyState, error) {
	return repository.CompanyState{QualificationStatus: repository.QualificationQualified}, nil
}

func (staticCandidates) GetPlatform(_ context.Context, id uuid.UUID) (repository.Platform, error) {
	return repository.Platform{ID: id, IsActive: true}, nil
}

type offlineAssigner struct{}

func (offlineAssigner) Enabled() bool { return false }

func (offlineAssigner) Assign(context.Context, campaigns.Lead) (campaigns.AssignResult, error) {
	return campaigns.AssignResult{Status: campaigns.StatusError}, nil
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, service.PlatformDispatch) domain.DispatchOutcome {
	return domain.NotSent{Reason: "connection refused"}
}

type fixture struct {
	engine   *gin.Engine
	ledger   *repository.MemoryLedger
	settings *memorySettings
}

func newFixture(t *testing.T, candidates ...domain.Candidate) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings := &memorySettings{settings: domain.DefaultSettings()}
	ledger := repository.NewMemoryLedger()
	store := staticCandidates{candidates: candidates}
	selector := service.NewSelector(store)
	worker := service.NewWorker(service.WorkerDeps{
		Ledger:    ledger,
		Selector:  selector,
		Companies: store,
		Assigner:  offlineAssigner{},
	})
	runner := service.NewRunner(service.RunnerDeps{
		Settings:   settings,
		Ledger:     ledger,
		Candidates: store,
		Selector:   selector,
		Worker:     worker,
		Assigner:   offlineAssigner{},
	}, service.RunnerConfig{})

	h := New(Services{
		Runner:       runner,
		Orchestrator: service.NewOrchestrator(settings, selector, failingDispatcher{}, nil, 0, nil),
		Batches:      service.NewBatchService(ledger, nil, nil, nil),
		Settings:     service.NewSettingsService(settings),
		Logs:         service.NewLogService(ledger),
	}, validator.New())

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	h.RegisterRoutes(v1, v1)
	return &fixture{engine: engine, ledger: ledger, settings: settings}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestRunDisabledReturnsSkipped(t *testing.T) {
	f := newFixture(t)
	f.settings.settings.IsEnabled = false

	rec := f.do(http.MethodPost, "/api/v1/assignment/run", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp transport.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Skipped)
}

func TestRunRejectsOutOfRangeOverride(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/assignment/run", map[string]any{"maxTotal": 99999})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "maxTotal")
}

func TestRunWithoutCampaignSystemIsValidationError(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/assignment/run", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "campaign system not configured")
}

func TestOrchestrateAllDispatchesFailedIsBadGateway(t *testing.T) {
	platform := uuid.New()
	f := newFixture(t, domain.Candidate{
		ContactID:    uuid.New(),
		CompanyID:    uuid.New(),
		PlatformID:   platform,
		PlatformName: "alpha",
		Email:        "a@alpha.nl",
	})

	rec := f.do(http.MethodPost, "/api/v1/assignment/orchestrate", nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.DispatchTriggerFailed)
}

func TestUpdateSettingsValidatesRanges(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/v1/assignment/settings", map[string]any{
		"maxTotalContacts":       100,
		"maxPerPlatform":         1000,
		"delayBetweenContactsMs": 500,
		"isEnabled":              true,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "maxPerPlatform")
	assert.Equal(t, domain.DefaultSettings().MaxPerPlatform, f.settings.settings.MaxPerPlatform)
}

func TestUpdateSettingsPersists(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/v1/assignment/settings", map[string]any{
		"maxTotalContacts":       120,
		"maxPerPlatform":         12,
		"delayBetweenContactsMs": 250,
		"isEnabled":              false,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, f.settings.settings.MaxPerPlatform)
	assert.False(t, f.settings.settings.IsEnabled)

	rec = f.do(http.MethodGet, "/api/v1/assignment/settings", nil)
	var resp transport.SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 120, resp.MaxTotalContacts)
}

func TestCancelBatchTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	batch, err := f.ledger.CreateBatch(context.Background(), domain.NewBatchParams{
		BatchID:         domain.NewBatchID(),
		Status:          domain.StatusPending,
		TotalCandidates: 3,
	})
	require.NoError(t, err)

	path := "/api/v1/assignment/batches/" + batch.BatchID + "/cancel"
	rec := f.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)

	rec = f.do(http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetUnknownBatchIsNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/assignment/batches/batch_missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLogsRejectsMalformedDate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/assignment/logs?dateFrom=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "dateFrom")
}

func TestListLogsReturnsEmptyPage(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/assignment/logs?status=added&page=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp transport.LogListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 50, resp.Limit)
	assert.Empty(t, resp.Items)
}

func TestLogFilterDateOnlyUpperBoundCoversWholeDay(t *testing.T) {
	filter, details := logFilterFrom(transport.ListLogsRequest{
		DateFrom: "2026-03-01",
		DateTo:   "2026-03-01",
	})

	require.Empty(t, details)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *filter.DateFrom)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *filter.DateTo)
}

func TestLogFilterTimestampUpperBoundIsExact(t *testing.T) {
	filter, details := logFilterFrom(transport.ListLogsRequest{DateTo: "2026-03-01T12:30:00Z"})

	require.Empty(t, details)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC), *filter.DateTo)
}

type countingCache struct{ calls int }

func (c *countingCache) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestRefreshBlocklistInvalidatesCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cache := &countingCache{}
	h := New(Services{Blocklist: cache}, validator.New())
	engine := gin.New()
	v1 := engine.Group("/api/v1")
	h.RegisterRoutes(v1, v1)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/assignment/blocklist/refresh", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cache.calls)
}
