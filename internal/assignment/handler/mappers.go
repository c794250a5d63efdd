package handler

import (
	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/service"
	"outreach_backend/internal/assignment/transport"
)

func toStatsResponse(s domain.Stats) transport.StatsResponse {
	return transport.StatsResponse{
		Processed:        s.Processed,
		Added:            s.Added,
		Skipped:          s.Skipped(),
		SkippedDuplicate: s.SkippedDuplicate,
		SkippedKlant:     s.SkippedKlant,
		SkippedAIError:   s.SkippedAIError,
		Errors:           s.Errors,
	}
}

func toPlatformStatsResponse(in map[string]domain.PlatformStats) map[string]transport.PlatformStatsResponse {
	out := make(map[string]transport.PlatformStatsResponse, len(in))
	for id, ps := range in {
		out[id] = transport.PlatformStatsResponse{Added: ps.Added, Skipped: ps.Skipped, Errors: ps.Errors}
	}
	return out
}

func toRunResponse(r service.RunResult) transport.RunResponse {
	return transport.RunResponse{
		Success:          r.Success,
		Skipped:          r.Skipped,
		Message:          r.Message,
		BatchID:          r.BatchID,
		Status:           string(r.Status),
		TotalCandidates:  r.TotalCandidates,
		Stats:            toStatsResponse(r.Stats),
		PlatformStats:    toPlatformStatsResponse(r.PlatformStats),
		HasMoreToProcess: r.HasMoreToProcess,
		LeadLimitReached: r.LeadLimitReached,
		DryRun:           r.DryRun,
	}
}

func toOrchestrateResponse(r service.OrchestrationResult) transport.OrchestrateResponse {
	platforms := make([]transport.PlatformDispatchResponse, 0, len(r.Platforms))
	for _, p := range r.Platforms {
		line := transport.PlatformDispatchResponse{
			PlatformID:     p.PlatformID,
			PlatformName:   p.PlatformName,
			CandidateCount: p.CandidateCount,
			Status:         p.Status,
			TimedOut:       p.TimedOut,
			Error:          p.Error,
		}
		if p.HTTPStatus != 0 {
			status := p.HTTPStatus
			line.HTTPStatus = &status
		}
		platforms = append(platforms, line)
	}
	return transport.OrchestrateResponse{
		Success:         r.Success,
		Skipped:         r.Skipped,
		OrchestrationID: r.OrchestrationID,
		TotalCandidates: r.TotalCandidates,
		DryRun:          r.DryRun,
		Platforms:       platforms,
	}
}

func toSettingsResponse(s domain.Settings) transport.SettingsResponse {
	return transport.SettingsResponse{
		MaxTotalContacts:       s.MaxTotalContacts,
		MaxPerPlatform:         s.MaxPerPlatform,
		DelayBetweenContactsMs: s.DelayBetweenContactsMs,
		IsEnabled:              s.IsEnabled,
		UpdatedAt:              s.UpdatedAt,
	}
}

func toBatchResponse(b domain.Batch) transport.BatchResponse {
	return transport.BatchResponse{
		BatchID:          b.BatchID,
		OrchestrationID:  b.OrchestrationID,
		PlatformID:       b.PlatformID,
		Status:           string(b.Status),
		TotalCandidates:  b.TotalCandidates,
		Stats:            toStatsResponse(b.Stats),
		PlatformStats:    toPlatformStatsResponse(b.PlatformStats),
		LeadLimitReached: b.LeadLimitReached,
		DryRun:           b.DryRun,
		LastError:        b.LastError,
		MaxTotal:         b.Limits.MaxTotal,
		MaxPerPlatform:   b.Limits.MaxPerPlatform,
		DelayMs:          b.Limits.DelayMs,
		ChunkSize:        b.Limits.ChunkSize,
		StartedAt:        b.StartedAt,
		CompletedAt:      b.CompletedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func toLogResponses(entries []domain.LogEntry) []transport.LogEntryResponse {
	out := make([]transport.LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, transport.LogEntryResponse{
			ID:             e.ID,
			BatchID:        e.BatchID,
			PlatformID:     e.PlatformID,
			PlatformName:   e.PlatformName,
			ContactID:      e.ContactID,
			CompanyID:      e.CompanyID,
			Email:          e.Email,
			ContactName:    e.ContactName,
			CompanyName:    e.CompanyName,
			Classification: string(e.Classification),
			Message:        e.Message,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out
}

// pageOf applies the list defaults for the response envelope.
func pageOf(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if limit <= 0 || total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
