// Package domain provides core business rules for the campaign-assignment
// bounded context: quotas, batch lifecycle, classification and dispatch outcomes.
package domain

import (
	"time"

	"outreach_backend/platform/apperr"
)

// Settings ranges.
const (
	MinTotalContacts = 1
	MaxTotalContacts = 5000
	MinPerPlatform   = 1
	MaxPerPlatform   = 500
	MinDelayMs       = 100
	MaxDelayMs       = 5000

	DefaultChunkSize = 25
	MaxChunkSize     = 100
)

// Settings is the persisted quota configuration. It is loaded once per run
// and passed by value; a run never observes a concurrent update.
type Settings struct {
	MaxTotalContacts       int
	MaxPerPlatform         int
	DelayBetweenContactsMs int
	IsEnabled              bool
	UpdatedAt              *time.Time
}

// DefaultSettings is used when no settings row exists.
func DefaultSettings() Settings {
	return Settings{
		MaxTotalContacts:       500,
		MaxPerPlatform:         30,
		DelayBetweenContactsMs: 500,
		IsEnabled:              true,
	}
}

// Validate checks the persisted ranges.
func (s Settings) Validate() error {
	details := map[string]string{}
	if s.MaxTotalContacts < MinTotalContacts || s.MaxTotalContacts > MaxTotalContacts {
		details["maxTotalContacts"] = rangeMessage(MinTotalContacts, MaxTotalContacts)
	}
	if s.MaxPerPlatform < MinPerPlatform || s.MaxPerPlatform > MaxPerPlatform {
		details["maxPerPlatform"] = rangeMessage(MinPerPlatform, MaxPerPlatform)
	}
	if s.DelayBetweenContactsMs < MinDelayMs || s.DelayBetweenContactsMs > MaxDelayMs {
		details["delayBetweenContactsMs"] = rangeMessage(MinDelayMs, MaxDelayMs)
	}
	if len(details) > 0 {
		return apperr.Validation("invalid assignment settings").WithDetails(details)
	}
	return nil
}

// RunLimits are the effective limits of one run after overrides.
// They are stored on the batch so a continuation needs nothing but the batch ID.
type RunLimits struct {
	MaxTotal       int
	MaxPerPlatform int
	DelayMs        int
	ChunkSize      int
}

// Delay returns the pause between two contacts.
func (l RunLimits) Delay() time.Duration {
	return time.Duration(l.DelayMs) * time.Millisecond
}

// RunOverrides are optional per-run values that replace Settings.
type RunOverrides struct {
	MaxTotal               *int
	MaxPerPlatform         *int
	DelayBetweenContactsMs *int
	ChunkSize              *int
}

// Apply resolves the effective limits. Overrides are held to the same ranges
// as Settings so a trigger cannot exceed what an admin could configure.
func (o RunOverrides) Apply(s Settings, defaultChunkSize int) (RunLimits, error) {
	if defaultChunkSize <= 0 {
		defaultChunkSize = DefaultChunkSize
	}
	limits := RunLimits{
		MaxTotal:       pick(o.MaxTotal, s.MaxTotalContacts),
		MaxPerPlatform: pick(o.MaxPerPlatform, s.MaxPerPlatform),
		DelayMs:        pick(o.DelayBetweenContactsMs, s.DelayBetweenContactsMs),
		ChunkSize:      pick(o.ChunkSize, defaultChunkSize),
	}

	details := map[string]string{}
	if limits.MaxTotal < MinTotalContacts || limits.MaxTotal > MaxTotalContacts {
		details["maxTotal"] = rangeMessage(MinTotalContacts, MaxTotalContacts)
	}
	if limits.MaxPerPlatform < MinPerPlatform || limits.MaxPerPlatform > MaxPerPlatform {
		details["maxPerPlatform"] = rangeMessage(MinPerPlatform, MaxPerPlatform)
	}
	if limits.DelayMs < MinDelayMs || limits.DelayMs > MaxDelayMs {
		details["delayBetweenContactsMs"] = rangeMessage(MinDelayMs, MaxDelayMs)
	}
	if limits.ChunkSize < 1 || limits.ChunkSize > MaxChunkSize {
		details["chunkSize"] = rangeMessage(1, MaxChunkSize)
	}
	if len(details) > 0 {
		return RunLimits{}, apperr.Validation("invalid run overrides").WithDetails(details)
	}
	return limits, nil
}

func pick(override *int, fallback int) int {
	if override != nil {
		return *override
	}
	return fallback
}

func rangeMessage(lo, hi int) string {
	return "must be between " + itoa(lo) + " and " + itoa(hi)
}
