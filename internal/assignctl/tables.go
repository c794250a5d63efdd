package assignctl

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"outreach_backend/internal/assignment/transport"
)

func printRun(tw *tabwriter.Writer, r transport.RunResponse) {
	if r.Skipped {
		fmt.Fprintln(tw, yellow("assignment disabled, run skipped"))
		return
	}
	if r.BatchID == "" {
		fmt.Fprintln(tw, r.Message)
		return
	}
	fmt.Fprintf(tw, "BATCH\t%s\n", r.BatchID)
	fmt.Fprintf(tw, "STATUS\t%s\n", colorStatus(r.Status))
	fmt.Fprintf(tw, "DRY RUN\t%t\n", r.DryRun)
	fmt.Fprintf(tw, "CANDIDATES\t%d\n", r.TotalCandidates)
	printStats(tw, r.Stats)
	fmt.Fprintf(tw, "MORE TO PROCESS\t%t\n", r.HasMoreToProcess)
	if r.LeadLimitReached {
		fmt.Fprintf(tw, "LEAD LIMIT\t%s\n", red("reached"))
	}
	printPlatformStats(tw, r.PlatformStats)
}

func printStats(tw *tabwriter.Writer, s transport.StatsResponse) {
	fmt.Fprintf(tw, "PROCESSED\t%d\n", s.Processed)
	fmt.Fprintf(tw, "ADDED\t%d\n", s.Added)
	fmt.Fprintf(tw, "SKIPPED\t%d (duplicate %d, klant %d, ai %d)\n", s.Skipped, s.SkippedDuplicate, s.SkippedKlant, s.SkippedAIError)
	fmt.Fprintf(tw, "ERRORS\t%d\n", s.Errors)
}

func printPlatformStats(tw *tabwriter.Writer, stats map[string]transport.PlatformStatsResponse) {
	if len(stats) == 0 {
		return
	}
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PLATFORM\tADDED\tSKIPPED\tERRORS")
	for _, id := range ids {
		ps := stats[id]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", id, ps.Added, ps.Skipped, ps.Errors)
	}
}

func printOrchestration(tw *tabwriter.Writer, r transport.OrchestrateResponse) {
	if r.Skipped {
		fmt.Fprintln(tw, yellow("assignment disabled, orchestration skipped"))
		return
	}
	fmt.Fprintf(tw, "ORCHESTRATION\t%s\n", r.OrchestrationID)
	fmt.Fprintf(tw, "CANDIDATES\t%d\n", r.TotalCandidates)
	fmt.Fprintf(tw, "DRY RUN\t%t\n", r.DryRun)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PLATFORM\tCANDIDATES\tSTATUS\tHTTP\tNOTE")
	for _, p := range r.Platforms {
		httpStatus := "-"
		if p.HTTPStatus != nil {
			httpStatus = fmt.Sprint(*p.HTTPStatus)
		}
		note := p.Error
		if p.TimedOut {
			note = "timed out, worker keeps running"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", p.PlatformName, p.CandidateCount, colorStatus(p.Status), httpStatus, note)
	}
}

func printSettings(tw *tabwriter.Writer, s transport.SettingsResponse) {
	fmt.Fprintf(tw, "MAX TOTAL\t%d\n", s.MaxTotalContacts)
	fmt.Fprintf(tw, "MAX PER PLATFORM\t%d\n", s.MaxPerPlatform)
	fmt.Fprintf(tw, "DELAY MS\t%d\n", s.DelayBetweenContactsMs)
	enabled := red("disabled")
	if s.IsEnabled {
		enabled = green("enabled")
	}
	fmt.Fprintf(tw, "STATE\t%s\n", enabled)
	if s.UpdatedAt != nil {
		fmt.Fprintf(tw, "UPDATED\t%s\n", s.UpdatedAt.Format(time.RFC3339))
	}
}

func printBatches(tw *tabwriter.Writer, r transport.BatchListResponse) {
	fmt.Fprintln(tw, "BATCH\tSTATUS\tPROCESSED\tADDED\tERRORS\tSTARTED")
	for _, b := range r.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			b.BatchID, colorStatus(b.Status), b.Stats.Processed, b.TotalCandidates,
			b.Stats.Added, b.Stats.Errors, b.StartedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "\npage %d of %d (%d batches)\n", r.Page, r.TotalPages, r.Total)
}

func printBatch(tw *tabwriter.Writer, b transport.BatchResponse) {
	fmt.Fprintf(tw, "BATCH\t%s\n", b.BatchID)
	if b.OrchestrationID != nil {
		fmt.Fprintf(tw, "ORCHESTRATION\t%s\n", *b.OrchestrationID)
	}
	if b.PlatformID != nil {
		fmt.Fprintf(tw, "PLATFORM\t%s\n", b.PlatformID)
	}
	fmt.Fprintf(tw, "STATUS\t%s\n", colorStatus(b.Status))
	fmt.Fprintf(tw, "CANDIDATES\t%d\n", b.TotalCandidates)
	printStats(tw, b.Stats)
	fmt.Fprintf(tw, "LIMITS\ttotal %d, per platform %d, delay %dms, chunk %d\n", b.MaxTotal, b.MaxPerPlatform, b.DelayMs, b.ChunkSize)
	if b.LeadLimitReached {
		fmt.Fprintf(tw, "LEAD LIMIT\t%s\n", red("reached"))
	}
	if b.LastError != nil {
		fmt.Fprintf(tw, "LAST ERROR\t%s\n", red(*b.LastError))
	}
	fmt.Fprintf(tw, "STARTED\t%s\n", b.StartedAt.Format(time.RFC3339))
	if b.CompletedAt != nil {
		fmt.Fprintf(tw, "COMPLETED\t%s\n", b.CompletedAt.Format(time.RFC3339))
	}
	printPlatformStats(tw, b.PlatformStats)
}

func printLogs(tw *tabwriter.Writer, r transport.LogListResponse) {
	fmt.Fprintln(tw, "TIME\tSTATUS\tEMAIL\tCOMPANY\tPLATFORM\tMESSAGE")
	for _, e := range r.Items {
		msg := ""
		if e.Message != nil {
			msg = *e.Message
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), colorStatus(e.Classification), e.Email, e.CompanyName, e.PlatformName, msg)
	}
	fmt.Fprintf(tw, "\npage %d of %d (%d entries)\n", r.Page, r.TotalPages, r.Total)
}
