package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Candidate is a contact eligible for assignment in the current run.
// It is a view over contacts, never persisted.
type Candidate struct {
	ContactID     uuid.UUID
	CompanyID     uuid.UUID
	PlatformID    uuid.UUID
	PlatformName  string
	CampaignID    string
	Email         string
	FirstName     string
	LastName      string
	Title         string
	CompanyName   string
	CompanyDomain string
	IsCustomer    bool
	CreatedAt     time.Time
}

// EmailDomain returns the lower-cased domain part of the email.
func (c Candidate) EmailDomain() string {
	at := strings.LastIndex(c.Email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(c.Email[at+1:])
}

// PlatformGroup is the unit the orchestrator dispatches to one worker.
type PlatformGroup struct {
	PlatformID     uuid.UUID
	PlatformName   string
	CandidateCount int
	Candidates     []Candidate
}

// SortGroups orders groups by platform name then ID, and each group's
// candidates oldest first. Every balancing decision relies on this order.
func SortGroups(groups []PlatformGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].PlatformName != groups[j].PlatformName {
			return groups[i].PlatformName < groups[j].PlatformName
		}
		return groups[i].PlatformID.String() < groups[j].PlatformID.String()
	})
	for i := range groups {
		cands := groups[i].Candidates
		sort.SliceStable(cands, func(a, b int) bool {
			if !cands[a].CreatedAt.Equal(cands[b].CreatedAt) {
				return cands[a].CreatedAt.Before(cands[b].CreatedAt)
			}
			return cands[a].ContactID.String() < cands[b].ContactID.String()
		})
	}
}

// BalancedOrder returns the candidates a run may still take, in processing
// order. used holds per-platform counts already consumed by the batch; the
// budget is maxTotal minus their sum. Each pick goes to the platform with the
// lowest level (used + picked so far), ties broken by platform order, so one
// large platform never starves the others and resumed chunks keep the same
// balance an uninterrupted run would have produced.
func BalancedOrder(groups []PlatformGroup, maxTotal, maxPerPlatform int, used map[uuid.UUID]int) []Candidate {
	sorted := make([]PlatformGroup, len(groups))
	copy(sorted, groups)
	for i := range sorted {
		sorted[i].Candidates = append([]Candidate(nil), sorted[i].Candidates...)
	}
	SortGroups(sorted)

	budget := maxTotal
	levels := make([]int, len(sorted))
	for i, g := range sorted {
		levels[i] = used[g.PlatformID]
	}
	for _, n := range used {
		budget -= n
	}

	next := make([]int, len(sorted))
	order := make([]Candidate, 0)
	for budget > 0 {
		best := -1
		for i, g := range sorted {
			if next[i] >= len(g.Candidates) || levels[i] >= maxPerPlatform {
				continue
			}
			if best < 0 || levels[i] < levels[best] {
				best = i
			}
		}
		if best < 0 {
			break
		}
		order = append(order, sorted[best].Candidates[next[best]])
		next[best]++
		levels[best]++
		budget--
	}
	return order
}

// BalanceGroups applies the per-platform and global caps with balanced
// representation and returns the non-empty groups in platform order.
func BalanceGroups(groups []PlatformGroup, maxTotal, maxPerPlatform int, used map[uuid.UUID]int) []PlatformGroup {
	order := BalancedOrder(groups, maxTotal, maxPerPlatform, used)

	byPlatform := make(map[uuid.UUID]*PlatformGroup)
	result := make([]PlatformGroup, 0, len(groups))
	for _, g := range groups {
		if _, ok := byPlatform[g.PlatformID]; ok {
			continue
		}
		result = append(result, PlatformGroup{PlatformID: g.PlatformID, PlatformName: g.PlatformName})
		byPlatform[g.PlatformID] = &result[len(result)-1]
	}
	for _, c := range order {
		g := byPlatform[c.PlatformID]
		g.Candidates = append(g.Candidates, c)
		g.CandidateCount++
	}

	nonEmpty := make([]PlatformGroup, 0, len(result))
	for _, g := range result {
		if g.CandidateCount > 0 {
			nonEmpty = append(nonEmpty, g)
		}
	}
	SortGroups(nonEmpty)
	return nonEmpty
}

// TotalCandidates sums the group counts.
func TotalCandidates(groups []PlatformGroup) int {
	total := 0
	for _, g := range groups {
		total += g.CandidateCount
	}
	return total
}
