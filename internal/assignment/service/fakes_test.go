package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/internal/blocklist"
	"outreach_backend/internal/campaigns"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

var baseTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func platformID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("platform:"+name))
}

// makeCandidates returns n candidates of one platform, oldest first.
func makeCandidates(platform string, n int) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Candidate{
			ContactID:     uuid.New(),
			CompanyID:     uuid.New(),
			PlatformID:    platformID(platform),
			PlatformName:  platform,
			CampaignID:    "campaign-" + platform,
			Email:         fmt.Sprintf("contact%d@%s-company%d.nl", i, platform, i),
			FirstName:     "Contact",
			LastName:      fmt.Sprint(i),
			CompanyName:   fmt.Sprintf("%s company %d", platform, i),
			CompanyDomain: fmt.Sprintf("%s-company%d.nl", platform, i),
			CreatedAt:     baseTime.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

type fakeStore struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	companies  map[uuid.UUID]repository.CompanyState
	inactive   map[uuid.UUID]bool
	listErr    error
}

func newFakeStore(candidates ...[]domain.Candidate) *fakeStore {
	s := &fakeStore{
		companies: make(map[uuid.UUID]repository.CompanyState),
		inactive:  make(map[uuid.UUID]bool),
	}
	for _, group := range candidates {
		s.candidates = append(s.candidates, group...)
	}
	return s
}

func (s *fakeStore) setCompany(companyID uuid.UUID, state repository.CompanyState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[companyID] = state
}

func (s *fakeStore) ListEligible(_ context.Context, q repository.CandidateQuery) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	excluded := make(map[uuid.UUID]bool, len(q.Exclude))
	for _, id := range q.Exclude {
		excluded[id] = true
	}
	perPlatform := make(map[uuid.UUID]int)
	out := make([]domain.Candidate, 0)
	for _, c := range s.candidates {
		if q.PlatformID != nil && c.PlatformID != *q.PlatformID {
			continue
		}
		if excluded[c.ContactID] {
			continue
		}
		if q.PerPlatformLimit > 0 && perPlatform[c.PlatformID] >= q.PerPlatformLimit {
			continue
		}
		perPlatform[c.PlatformID]++
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeStore) CompanyEligibility(_ context.Context, companyID uuid.UUID) (repository.CompanyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.companies[companyID]; ok {
		return state, nil
	}
	return repository.CompanyState{QualificationStatus: repository.QualificationQualified}, nil
}

func (s *fakeStore) GetPlatform(_ context.Context, id uuid.UUID) (repository.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		if c.PlatformID == id {
			return repository.Platform{ID: id, Name: c.PlatformName, IsActive: !s.inactive[id]}, nil
		}
	}
	return repository.Platform{}, apperr.NotFound("platform not found")
}

type fakeSettings struct {
	settings domain.Settings
}

func (f *fakeSettings) GetSettings(context.Context) (domain.Settings, error) {
	return f.settings, nil
}

func (f *fakeSettings) UpsertSettings(_ context.Context, s domain.Settings) (domain.Settings, error) {
	f.settings = s
	return s, nil
}

// fakeAssigner answers from respond, or adds every lead.
type fakeAssigner struct {
	mu       sync.Mutex
	disabled bool
	calls    []campaigns.Lead
	respond  func(call int, lead campaigns.Lead) (campaigns.AssignResult, error)
}

func (f *fakeAssigner) Enabled() bool { return !f.disabled }

func (f *fakeAssigner) Assign(_ context.Context, lead campaigns.Lead) (campaigns.AssignResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, lead)
	call := len(f.calls)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		return respond(call, lead)
	}
	return campaigns.AssignResult{Status: campaigns.StatusAdded, HTTPStatus: 200}, nil
}

func (f *fakeAssigner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBlocklist struct {
	mu     sync.Mutex
	emails map[string]bool
}

func (f *fakeBlocklist) block(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emails == nil {
		f.emails = make(map[string]bool)
	}
	f.emails[email] = true
}

func (f *fakeBlocklist) IsBlocked(_ context.Context, s blocklist.Subject) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emails[s.Email], nil
}

type fakeScheduler struct {
	mu      sync.Mutex
	batches []string
}

func (f *fakeScheduler) ScheduleContinuation(_ context.Context, batchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batchID)
	return nil
}

func (f *fakeScheduler) scheduled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.batches...)
}

type fakeDispatcher struct {
	mu       sync.Mutex
	outcomes map[uuid.UUID]domain.DispatchOutcome
	requests []PlatformDispatch
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req PlatformDispatch) domain.DispatchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if o, ok := f.outcomes[req.PlatformID]; ok {
		return o
	}
	return domain.Sent{HTTPStatus: 200}
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// harness wires a runner and worker over an in-memory ledger.
type harness struct {
	store     *fakeStore
	ledger    *repository.MemoryLedger
	settings  *fakeSettings
	assigner  *fakeAssigner
	blocklist *fakeBlocklist
	scheduler *fakeScheduler
	worker    *Worker
	runner    *Runner
	delays    []time.Duration
}

func newHarness(store *fakeStore, cfg RunnerConfig) *harness {
	h := &harness{
		store:     store,
		ledger:    repository.NewMemoryLedger(),
		settings:  &fakeSettings{settings: domain.DefaultSettings()},
		assigner:  &fakeAssigner{},
		blocklist: &fakeBlocklist{},
		scheduler: &fakeScheduler{},
	}
	selector := NewSelector(store)
	h.worker = NewWorker(WorkerDeps{
		Ledger:    h.ledger,
		Selector:  selector,
		Companies: store,
		Blocklist: h.blocklist,
		Assigner:  h.assigner,
	})
	h.worker.sleep = func(ctx context.Context, d time.Duration) error {
		h.delays = append(h.delays, d)
		return ctx.Err()
	}
	h.runner = NewRunner(RunnerDeps{
		Settings:   h.settings,
		Ledger:     h.ledger,
		Candidates: store,
		Selector:   selector,
		Worker:     h.worker,
		Assigner:   h.assigner,
		Scheduler:  h.scheduler,
	}, cfg)
	h.runner.sleep = noSleep
	return h
}

// createBatch opens a global batch over every candidate the store returns.
func (h *harness) createBatch(total int, limits domain.RunLimits) domain.Batch {
	b, err := h.ledger.CreateBatch(context.Background(), domain.NewBatchParams{
		BatchID:         domain.NewBatchID(),
		Status:          domain.StatusPending,
		TotalCandidates: total,
		Limits:          limits,
	})
	if err != nil {
		panic(err)
	}
	return b
}

func limits(maxTotal, maxPerPlatform, chunk int) domain.RunLimits {
	return domain.RunLimits{MaxTotal: maxTotal, MaxPerPlatform: maxPerPlatform, DelayMs: 200, ChunkSize: chunk}
}
