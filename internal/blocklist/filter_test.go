package blocklist

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	entries []Entry
	calls   int32
	err     error
}

func (s *staticSource) ListActive(context.Context) ([]Entry, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.entries, s.err
}

func newRedisFilter(t *testing.T, src Source) (*Filter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFilter(src, client, time.Minute, nil), mr
}

func TestRedisFilterMatchesEveryEntryType(t *testing.T) {
	blockedCompany := uuid.New()
	src := &staticSource{entries: []Entry{
		{Type: TypeEmail, Value: "ceo@acme.nl"},
		{Type: TypeDomain, Value: "competitor.com"},
		{Type: TypeCompany, Value: blockedCompany.String()},
	}}
	f, _ := newRedisFilter(t, src)
	ctx := context.Background()

	cases := []struct {
		name    string
		subject Subject
		want    bool
	}{
		{"email is case insensitive", Subject{Email: "CEO@Acme.nl"}, true},
		{"email domain", Subject{Email: "sales@competitor.com"}, true},
		{"company domain", Subject{Email: "jan@gmail.com", Domain: "Competitor.com"}, true},
		{"company id", Subject{Email: "x@y.nl", CompanyID: blockedCompany}, true},
		{"clean contact", Subject{Email: "hr@bakkerij.nl", Domain: "bakkerij.nl", CompanyID: uuid.New()}, false},
		{"empty subject", Subject{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blocked, err := f.IsBlocked(ctx, tc.subject)
			require.NoError(t, err)
			assert.Equal(t, tc.want, blocked)
		})
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls), "entries must be loaded once per TTL")
}

func TestRedisFilterReloadsAfterExpiryAndInvalidate(t *testing.T) {
	src := &staticSource{entries: []Entry{{Type: TypeDomain, Value: "spam.io"}}}
	f, mr := newRedisFilter(t, src)
	ctx := context.Background()

	_, err := f.IsBlocked(ctx, Subject{Email: "a@spam.io"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = f.IsBlocked(ctx, Subject{Email: "a@spam.io"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))

	require.NoError(t, f.Invalidate(ctx))
	assert.False(t, mr.Exists(keyLoaded))
	_, err = f.IsBlocked(ctx, Subject{Email: "a@spam.io"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.calls))
}

func TestFilterFallsBackToSnapshotWhenRedisIsDown(t *testing.T) {
	src := &staticSource{entries: []Entry{{Type: TypeEmail, Value: "x@y.nl"}}}
	f, mr := newRedisFilter(t, src)
	mr.Close()

	blocked, err := f.IsBlocked(context.Background(), Subject{Email: "x@y.nl"})
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestLocalFilterPropagatesSourceErrors(t *testing.T) {
	f := NewFilter(&staticSource{err: errors.New("db down")}, nil, time.Minute, nil)

	_, err := f.IsBlocked(context.Background(), Subject{Email: "x@y.nl"})
	assert.Error(t, err)
}

func TestLocalSnapshotHonoursTTL(t *testing.T) {
	src := &staticSource{}
	f := NewFilter(src, nil, time.Minute, nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = f.IsBlocked(ctx, Subject{Email: "a@b.nl"})
	_, _ = f.IsBlocked(ctx, Subject{Email: "a@b.nl"})
	require.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	now = now.Add(2 * time.Minute)
	_, _ = f.IsBlocked(ctx, Subject{Email: "a@b.nl"})
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}
