package service

import (
	"context"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

// Selector turns the eligible-contact view into balanced platform groups.
// It owns no state; every call queries fresh.
type Selector struct {
	store repository.CandidateStore
}

// NewSelector creates a selector.
func NewSelector(store repository.CandidateStore) *Selector {
	return &Selector{store: store}
}

// GroupedCandidates returns the per-platform groups of a new run. The sum of
// counts never exceeds maxTotal and no group exceeds maxPerPlatform.
func (s *Selector) GroupedCandidates(ctx context.Context, maxTotal, maxPerPlatform int) ([]domain.PlatformGroup, error) {
	return s.groupedFor(ctx, nil, maxTotal, maxPerPlatform)
}

// PlatformCandidates is GroupedCandidates restricted to one platform.
func (s *Selector) PlatformCandidates(ctx context.Context, platformID uuid.UUID, maxTotal, maxPerPlatform int) ([]domain.PlatformGroup, error) {
	return s.groupedFor(ctx, &platformID, maxTotal, maxPerPlatform)
}

func (s *Selector) groupedFor(ctx context.Context, platformID *uuid.UUID, maxTotal, maxPerPlatform int) ([]domain.PlatformGroup, error) {
	if maxTotal < 1 || maxPerPlatform < 1 {
		return nil, apperr.Validation("maxTotal and maxPerPlatform must be at least 1")
	}
	candidates, err := s.store.ListEligible(ctx, repository.CandidateQuery{
		PlatformID:       platformID,
		PerPlatformLimit: maxPerPlatform,
	})
	if err != nil {
		return nil, err
	}
	return domain.BalanceGroups(groupByPlatform(candidates), maxTotal, maxPerPlatform, nil), nil
}

// Next returns up to limit candidates the batch should process next, in
// balanced order. exclude holds contacts already logged or dropped.
func (s *Selector) Next(ctx context.Context, batch domain.Batch, exclude []uuid.UUID, limit int) ([]domain.Candidate, error) {
	if limit <= 0 || batch.Remaining() == 0 {
		return nil, nil
	}
	candidates, err := s.store.ListEligible(ctx, repository.CandidateQuery{
		PlatformID:       batch.PlatformID,
		Exclude:          exclude,
		PerPlatformLimit: batch.Limits.MaxPerPlatform,
	})
	if err != nil {
		return nil, err
	}

	order := domain.BalancedOrder(groupByPlatform(candidates), batch.TotalCandidates, batch.Limits.MaxPerPlatform, batch.UsedPerPlatform())
	if len(order) > limit {
		order = order[:limit]
	}
	return order, nil
}

func groupByPlatform(candidates []domain.Candidate) []domain.PlatformGroup {
	index := make(map[uuid.UUID]int)
	groups := make([]domain.PlatformGroup, 0)
	for _, c := range candidates {
		i, ok := index[c.PlatformID]
		if !ok {
			i = len(groups)
			index[c.PlatformID] = i
			groups = append(groups, domain.PlatformGroup{PlatformID: c.PlatformID, PlatformName: c.PlatformName})
		}
		groups[i].Candidates = append(groups[i].Candidates, c)
		groups[i].CandidateCount++
	}
	return groups
}
