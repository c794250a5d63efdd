package service

import (
	"context"
	"testing"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/platform/apperr"
)

func TestGroupedCandidatesRespectsQuotas(t *testing.T) {
	store := newFakeStore(makeCandidates("alpha", 12), makeCandidates("beta", 3), makeCandidates("gamma", 8))
	selector := NewSelector(store)

	cases := []struct {
		maxTotal, maxPerPlatform int
	}{
		{1, 1}, {5, 2}, {10, 4}, {20, 6}, {100, 100},
	}
	for _, tc := range cases {
		groups, err := selector.GroupedCandidates(context.Background(), tc.maxTotal, tc.maxPerPlatform)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total := domain.TotalCandidates(groups); total > tc.maxTotal {
			t.Fatalf("maxTotal %d exceeded: %d", tc.maxTotal, total)
		}
		for _, g := range groups {
			if g.CandidateCount > tc.maxPerPlatform {
				t.Fatalf("platform %s exceeded maxPerPlatform %d: %d", g.PlatformName, tc.maxPerPlatform, g.CandidateCount)
			}
			if g.CandidateCount != len(g.Candidates) {
				t.Fatalf("count %d does not match candidate list %d", g.CandidateCount, len(g.Candidates))
			}
		}
	}
}

func TestGroupedCandidatesBalancesPlatforms(t *testing.T) {
	store := newFakeStore(makeCandidates("alpha", 12), makeCandidates("beta", 3), makeCandidates("gamma", 8))
	groups, err := NewSelector(store).GroupedCandidates(context.Background(), 10, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[string]int{}
	for _, g := range groups {
		got[g.PlatformName] = g.CandidateCount
	}
	if got["alpha"] != 4 || got["beta"] != 3 || got["gamma"] != 3 {
		t.Fatalf("expected balanced 4/3/3 split, got %v", got)
	}
}

func TestGroupedCandidatesEmptyIsNotAnError(t *testing.T) {
	groups, err := NewSelector(newFakeStore()).GroupedCandidates(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}

func TestGroupedCandidatesRejectsZeroLimits(t *testing.T) {
	_, err := NewSelector(newFakeStore()).GroupedCandidates(context.Background(), 0, 5)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
