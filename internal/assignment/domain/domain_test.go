package domain

import "testing"

func TestStatsRecordStaysConsistent(t *testing.T) {
	var s Stats
	for _, c := range []Classification{ClassAdded, ClassSkippedKlant, ClassSkippedAIError, ClassSkippedDuplicate, ClassError, ClassAdded} {
		s.Record(c)
		if !s.Consistent() {
			t.Fatalf("stats inconsistent after %s: %+v", c, s)
		}
	}
	if s.Processed != 6 || s.Added != 2 || s.Skipped() != 3 || s.Errors != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestMergePlatformStatsIsAdditive(t *testing.T) {
	base := map[string]PlatformStats{"a": {Added: 1}}
	merged := MergePlatformStats(base, DeltaFor("a", ClassSkippedDuplicate).Platforms)
	merged = MergePlatformStats(merged, DeltaFor("b", ClassError).Platforms)

	if merged["a"] != (PlatformStats{Added: 1, Skipped: 1}) {
		t.Fatalf("unexpected platform a stats %+v", merged["a"])
	}
	if merged["b"].Errors != 1 {
		t.Fatalf("unexpected platform b stats %+v", merged["b"])
	}
	if base["a"].Skipped != 0 {
		t.Fatal("merge must not mutate its input")
	}
}

func TestDispatchStatus(t *testing.T) {
	if DispatchStatus(Sent{TimedOut: true}) != DispatchTriggered {
		t.Fatal("a timed out dispatch was sent and must count as triggered")
	}
	if DispatchStatus(NotSent{Reason: "connection refused"}) != DispatchTriggerFailed {
		t.Fatal("expected trigger_failed for NotSent")
	}
}

func TestLeadLimitGuardTripsOnce(t *testing.T) {
	g := NewLeadLimitGuard(false)
	if !g.Allows() || g.State() != LeadLimitNormal {
		t.Fatal("fresh guard must allow dispatch")
	}
	if !g.Trip() {
		t.Fatal("first trip must report a transition")
	}
	if g.Trip() {
		t.Fatal("second trip must be a no-op")
	}
	if g.Allows() || g.State() != LeadLimitReached {
		t.Fatal("tripped guard must block dispatch")
	}
	if NewLeadLimitGuard(true).Allows() {
		t.Fatal("guard seeded from a tripped batch must block dispatch")
	}
}
