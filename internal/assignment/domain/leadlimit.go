package domain

// Lead-limit guard states.
const (
	LeadLimitNormal  = "normal"
	LeadLimitReached = "limit_reached"
)

// LeadLimitGuard stops dispatch for the rest of a batch once the campaign
// system reports its global lead ceiling. It never resets; the next run
// starts with a fresh guard.
type LeadLimitGuard struct {
	tripped bool
}

// NewLeadLimitGuard returns a guard seeded from the batch flag.
func NewLeadLimitGuard(alreadyReached bool) *LeadLimitGuard {
	return &LeadLimitGuard{tripped: alreadyReached}
}

// Trip moves the guard to limit_reached. It returns true only on the first call.
func (g *LeadLimitGuard) Trip() bool {
	if g.tripped {
		return false
	}
	g.tripped = true
	return true
}

// Allows reports whether another dispatch may be attempted.
func (g *LeadLimitGuard) Allows() bool {
	return !g.tripped
}

// State returns the current guard state.
func (g *LeadLimitGuard) State() string {
	if g.tripped {
		return LeadLimitReached
	}
	return LeadLimitNormal
}
