package repository

import (
	"strings"
	"testing"

	"outreach_backend/internal/assignment/domain"
)

func normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func TestListEligibleQueryFiltersIneligibleContacts(t *testing.T) {
	query := normalize(listEligibleQuery)

	requiredFragments := []string{
		"co.qualification_status = 'qualified'",
		"(ct.campaign_assignment_status is null or ct.campaign_assignment_status = 'error')",
		"not exists ( select 1 from blocklist_entries b",
		"b.entry_type = 'email' and b.value = lower(ct.email)",
		"b.entry_type = 'company' and b.value = co.id::text",
		"not (ct.id = any($2::uuid[]))",
		"row_number() over (partition by co.platform_id order by ct.created_at, ct.id)",
		"where rn <= $3",
	}
	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected candidate query fragment %q to be present", fragment)
		}
	}
}

func TestLedgerIncrementsAreAdditive(t *testing.T) {
	query := normalize(incrementCountersQuery)
	for _, col := range []string{"processed", "added", "skipped_duplicate", "skipped_klant", "skipped_ai_error", "errors"} {
		if !strings.Contains(query, col+" = "+col+" + $") {
			t.Fatalf("expected additive update for %s", col)
		}
	}
}

func TestRecordOutcomeInsertIsIdempotent(t *testing.T) {
	if !strings.Contains(normalize(insertLogQuery), "on conflict (batch_id, contact_id) do nothing") {
		t.Fatal("assignment log insert must ignore duplicates")
	}
}

func TestRecordOutcomeLocksBatchRow(t *testing.T) {
	if !strings.Contains(normalize(lockBatchStatusQuery), "where batch_id = $1 for update") {
		t.Fatal("outcome recording must lock the batch row against a concurrent finalize")
	}
}

func TestFinalizeOnlyMatchesNonTerminalBatches(t *testing.T) {
	if !strings.Contains(normalize(finalizeBatchQuery), "status not in ('completed', 'failed', 'cancelled')") {
		t.Fatal("finalize must be guarded against terminal batches")
	}
}

func TestActiveBatchQueryIgnoresPlatformBatches(t *testing.T) {
	if !strings.Contains(normalize(findActiveBatchQuery), "where platform_id is null and status in ('pending', 'processing')") {
		t.Fatal("active batch lookup must only consider global batches")
	}
}

func TestLogRetentionKeepsResumableBatches(t *testing.T) {
	if !strings.Contains(normalize(deleteLogsBeforeQuery), "b.status in ('completed', 'failed', 'cancelled')") {
		t.Fatal("log retention must only prune terminal batches")
	}
}

func TestSourcesForFollowsStateMachine(t *testing.T) {
	got := strings.Join(sourcesFor(domain.StatusProcessing), ",")
	if got != "pending,paused" {
		t.Fatalf("expected processing reachable from pending,paused, got %s", got)
	}
	if len(sourcesFor(domain.StatusPending)) != 0 {
		t.Fatal("pending must not be reachable from any status")
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("unexpected escape %q", got)
	}
}
