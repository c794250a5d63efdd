// Package blocklist is the filter the assignment worker consults before
// contacting a candidate. Active entries are cached in Redis sets, or in an
// in-process snapshot when Redis is not configured.
package blocklist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "blocklist:"
	keyLoaded  = keyPrefix + "loaded"
	defaultTTL = 5 * time.Minute
)

// Subject is what a candidate exposes to the filter. Domain is the company
// domain; the email domain is always derived and checked as well.
type Subject struct {
	Email     string
	Domain    string
	CompanyID uuid.UUID
}

func (s Subject) lookups() []lookup {
	out := make([]lookup, 0, 4)
	email := strings.ToLower(strings.TrimSpace(s.Email))
	if email != "" {
		out = append(out, lookup{TypeEmail, email})
		if at := strings.LastIndex(email, "@"); at >= 0 && at < len(email)-1 {
			out = append(out, lookup{TypeDomain, email[at+1:]})
		}
	}
	if domain := strings.ToLower(strings.TrimSpace(s.Domain)); domain != "" {
		out = append(out, lookup{TypeDomain, domain})
	}
	if s.CompanyID != uuid.Nil {
		out = append(out, lookup{TypeCompany, s.CompanyID.String()})
	}
	return out
}

// Filter answers IsBlocked from a cached copy of the active entries.
type Filter struct {
	source Source
	redis  *redis.Client
	ttl    time.Duration
	log    *logger.Logger

	mu       sync.Mutex
	snapshot map[string]map[string]bool
	loadedAt time.Time
	now      func() time.Time
}

// NewFilter creates a filter. redisClient may be nil.
func NewFilter(source Source, redisClient *redis.Client, ttl time.Duration, log *logger.Logger) *Filter {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Filter{source: source, redis: redisClient, ttl: ttl, log: log, now: time.Now}
}

// IsBlocked reports whether the email, its domain, the company domain or the
// company itself is on the blocklist.
func (f *Filter) IsBlocked(ctx context.Context, s Subject) (bool, error) {
	checks := s.lookups()
	if f.redis != nil {
		blocked, err := f.isBlockedRedis(ctx, checks)
		if err == nil {
			return blocked, nil
		}
		f.log.Warn("blocklist redis lookup failed, using local snapshot", "error", err)
	}
	return f.isBlockedLocal(ctx, checks)
}

// Invalidate drops every cached copy; the next lookup reloads from the source.
func (f *Filter) Invalidate(ctx context.Context) error {
	f.mu.Lock()
	f.snapshot = nil
	f.mu.Unlock()

	if f.redis == nil {
		return nil
	}
	return f.redis.Del(ctx, keyLoaded, setKey(TypeEmail), setKey(TypeDomain), setKey(TypeCompany)).Err()
}

func (f *Filter) isBlockedRedis(ctx context.Context, checks []lookup) (bool, error) {
	loaded, err := f.redis.Exists(ctx, keyLoaded).Result()
	if err != nil {
		return false, err
	}
	if loaded == 0 {
		if err := f.fillRedis(ctx); err != nil {
			return false, err
		}
	}

	if len(checks) == 0 {
		return false, nil
	}
	pipe := f.redis.Pipeline()
	cmds := make([]*redis.BoolCmd, 0, len(checks))
	for _, p := range checks {
		cmds = append(cmds, pipe.SIsMember(ctx, setKey(p.kind), p.value))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	for _, c := range cmds {
		if c.Val() {
			return true, nil
		}
	}
	return false, nil
}

func (f *Filter) fillRedis(ctx context.Context) error {
	entries, err := f.source.ListActive(ctx)
	if err != nil {
		return err
	}
	grouped := group(entries)

	_, err = f.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, kind := range []string{TypeEmail, TypeDomain, TypeCompany} {
			key := setKey(kind)
			pipe.Del(ctx, key)
			if members := grouped[kind]; len(members) > 0 {
				values := make([]any, 0, len(members))
				for v := range members {
					values = append(values, v)
				}
				pipe.SAdd(ctx, key, values...)
				pipe.Expire(ctx, key, f.ttl+time.Minute)
			}
		}
		pipe.Set(ctx, keyLoaded, len(entries), f.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache blocklist: %w", err)
	}
	return nil
}

func (f *Filter) isBlockedLocal(ctx context.Context, checks []lookup) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.snapshot == nil || f.now().Sub(f.loadedAt) > f.ttl {
		entries, err := f.source.ListActive(ctx)
		if err != nil {
			return false, err
		}
		f.snapshot = group(entries)
		f.loadedAt = f.now()
	}
	for _, p := range checks {
		if f.snapshot[p.kind][p.value] {
			return true, nil
		}
	}
	return false, nil
}

type lookup struct {
	kind  string
	value string
}

func group(entries []Entry) map[string]map[string]bool {
	grouped := map[string]map[string]bool{
		TypeEmail:   {},
		TypeDomain:  {},
		TypeCompany: {},
	}
	for _, e := range entries {
		if set, ok := grouped[e.Type]; ok {
			set[strings.ToLower(e.Value)] = true
		}
	}
	return grouped
}

func setKey(kind string) string {
	return keyPrefix + kind
}
