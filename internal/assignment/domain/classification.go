package domain

// Classification is the per-contact outcome of an assignment attempt.
type Classification string

const (
	ClassAdded            Classification = "added"
	ClassSkippedKlant     Classification = "skipped_klant"
	ClassSkippedAIError   Classification = "skipped_ai_error"
	ClassSkippedDuplicate Classification = "skipped_duplicate"
	ClassError            Classification = "error"
)

// MessageLeadLimitReached is stored on the contact that tripped the lead limit.
const MessageLeadLimitReached = "lead limit reached"

// ParseClassification validates a raw classification string.
func ParseClassification(raw string) (Classification, bool) {
	c := Classification(raw)
	switch c {
	case ClassAdded, ClassSkippedKlant, ClassSkippedAIError, ClassSkippedDuplicate, ClassError:
		return c, true
	}
	return "", false
}

// IsSkip reports whether the classification counts towards "skipped".
func (c Classification) IsSkip() bool {
	return c == ClassSkippedKlant || c == ClassSkippedAIError || c == ClassSkippedDuplicate
}

// PlatformStats are the per-platform counters stored on a batch.
type PlatformStats struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Processed is the number of contacts this platform contributed.
func (p PlatformStats) Processed() int {
	return p.Added + p.Skipped + p.Errors
}

// Record counts one classified contact.
func (p *PlatformStats) Record(c Classification) {
	switch {
	case c == ClassAdded:
		p.Added++
	case c.IsSkip():
		p.Skipped++
	default:
		p.Errors++
	}
}

// Stats are the batch-level counters.
type Stats struct {
	Processed        int
	Added            int
	SkippedDuplicate int
	SkippedKlant     int
	SkippedAIError   int
	Errors           int
}

// Skipped is the sum of all skip classifications.
func (s Stats) Skipped() int {
	return s.SkippedDuplicate + s.SkippedKlant + s.SkippedAIError
}

// Consistent reports whether every processed contact is classified exactly once.
func (s Stats) Consistent() bool {
	return s.Added+s.Skipped()+s.Errors == s.Processed
}

// Record counts one classified contact.
func (s *Stats) Record(c Classification) {
	s.Processed++
	switch c {
	case ClassAdded:
		s.Added++
	case ClassSkippedDuplicate:
		s.SkippedDuplicate++
	case ClassSkippedKlant:
		s.SkippedKlant++
	case ClassSkippedAIError:
		s.SkippedAIError++
	default:
		s.Errors++
	}
}

// Add returns the element-wise sum.
func (s Stats) Add(other Stats) Stats {
	return Stats{
		Processed:        s.Processed + other.Processed,
		Added:            s.Added + other.Added,
		SkippedDuplicate: s.SkippedDuplicate + other.SkippedDuplicate,
		SkippedKlant:     s.SkippedKlant + other.SkippedKlant,
		SkippedAIError:   s.SkippedAIError + other.SkippedAIError,
		Errors:           s.Errors + other.Errors,
	}
}

// ProgressDelta is an additive ledger update. Applying it twice double counts,
// so callers apply it only after the matching log rows were inserted.
type ProgressDelta struct {
	Stats     Stats
	Platforms map[string]PlatformStats
}

// DeltaFor builds the delta of a single classified contact.
func DeltaFor(platformID string, c Classification) ProgressDelta {
	var stats Stats
	stats.Record(c)
	var ps PlatformStats
	ps.Record(c)
	return ProgressDelta{
		Stats:     stats,
		Platforms: map[string]PlatformStats{platformID: ps},
	}
}

// MergePlatformStats adds delta into base and returns a new map.
func MergePlatformStats(base, delta map[string]PlatformStats) map[string]PlatformStats {
	merged := make(map[string]PlatformStats, len(base)+len(delta))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range delta {
		cur := merged[k]
		cur.Added += v.Added
		cur.Skipped += v.Skipped
		cur.Errors += v.Errors
		merged[k] = cur
	}
	return merged
}
