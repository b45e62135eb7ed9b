package xkv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpireOption(t *testing.T) {
	tests := []struct {
		in   string
		want ExpireOption
		ok   bool
	}{
		{"", ExpireAlways, true},
		{"none", ExpireAlways, true},
		{"NX", ExpireNX, true},
		{"xx", ExpireXX, true},
		{" gt ", ExpireGT, true},
		{"Lt", ExpireLT, true},
		{"EQ", ExpireAlways, false},
	}
	for _, tt := range tests {
		got, err := ParseExpireOption(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		if tt.ok {
			assert.NoError(t, err, tt.in)
		} else {
			assert.ErrorIs(t, err, ErrInvalidExpireOption, tt.in)
		}
	}
}

func TestExpireOption_String(t *testing.T) {
	assert.Equal(t, "", ExpireAlways.String())
	assert.Equal(t, "NX", ExpireNX.String())
	assert.Equal(t, "XX", ExpireXX.String())
	assert.Equal(t, "GT", ExpireGT.String())
	assert.Equal(t, "LT", ExpireLT.String())
	assert.Equal(t, "ExpireOption(9)", ExpireOption(9).String())
}

func TestCache_ExpireAtOptions(t *testing.T) {
	c, clock := newClockCache(t)
	ctx := context.Background()
	now := clock.Now()
	early, late := now.Add(time.Minute), now.Add(time.Hour)

	tests := []struct {
		name   string
		hasTTL bool
		at     time.Time
		opt    ExpireOption
		want   bool
		wantAt time.Time
	}{
		{"always without ttl", false, early, ExpireAlways, true, early},
		{"always with ttl", true, late, ExpireAlways, true, late},
		{"nx without ttl", false, early, ExpireNX, true, early},
		{"nx with ttl", true, late, ExpireNX, false, early},
		{"xx without ttl", false, early, ExpireXX, false, time.Time{}},
		{"xx with ttl", true, late, ExpireXX, true, late},
		{"gt later", true, late, ExpireGT, true, late},
		{"gt equal", true, early, ExpireGT, false, early},
		{"gt without ttl", false, late, ExpireGT, false, time.Time{}},
		{"lt earlier", true, now.Add(time.Second), ExpireLT, true, now.Add(time.Second)},
		{"lt later", true, late, ExpireLT, false, early},
		{"lt without ttl", false, early, ExpireLT, false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Set(ctx, "k", String("v")))
			if tt.hasTTL {
				ok, err := c.ExpireAt(ctx, "k", early, ExpireAlways)
				require.NoError(t, err)
				require.True(t, ok)
			}

			ok, err := c.ExpireAt(ctx, "k", tt.at, tt.opt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			if tt.wantAt.IsZero() {
				assert.Equal(t, int64(-1), c.ExpireTime(ctx, "k"))
			} else {
				assert.Equal(t, tt.wantAt.Unix(), c.ExpireTime(ctx, "k"))
			}
		})
	}
}

func TestCache_ExpireMissingKey(t *testing.T) {
	c, _ := newClockCache(t)
	ctx := context.Background()

	ok, err := c.Expire(ctx, "missing", time.Minute, ExpireAlways)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Expire(ctx, "missing", time.Minute, ExpireOption(42))
	assert.ErrorIs(t, err, ErrInvalidExpireOption, "invalid option is reported even for a missing key")

	_ = c.Set(ctx, "k", String("v"))
	_, err = c.Expire(ctx, "k", time.Minute, ExpireOption(42))
	assert.ErrorIs(t, err, ErrInvalidExpireOption)
	assert.Equal(t, float64(-1), c.TTL(ctx, "k"))
}

func TestCache_LazyExpiry(t *testing.T) {
	c, clock := newClockCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", String("v"))
	_, _ = c.Expire(ctx, "k", 10*time.Second, ExpireAlways)

	clock.Advance(9 * time.Second)
	assert.True(t, c.Exists(ctx, "k"))
	assert.InDelta(t, 1, c.TTL(ctx, "k"), 0.001)

	clock.Advance(time.Second)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "key is invisible once its deadline is reached")
	assert.Equal(t, float64(-2), c.TTL(ctx, "k"))
	assert.Equal(t, int64(-2), c.ExpireTime(ctx, "k"))

	stats := c.Stats()
	assert.Equal(t, 0, stats.Keys)
	assert.Equal(t, 0, stats.Volatile)
	assert.Equal(t, uint64(1), stats.Expired)
}

func TestCache_ExpireInPast(t *testing.T) {
	c, clock := newClockCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", String("v"))
	ok, err := c.ExpireAt(ctx, "k", clock.Now().Add(-time.Minute), ExpireAlways)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, c.Exists(ctx, "k"))
}

func TestCache_Persist(t *testing.T) {
	c, _ := newClockCache(t)
	ctx := context.Background()

	assert.False(t, c.Persist(ctx, "missing"))
	_ = c.Set(ctx, "k", String("v"))
	assert.False(t, c.Persist(ctx, "k"))

	_, _ = c.Expire(ctx, "k", time.Minute, ExpireAlways)
	assert.True(t, c.Persist(ctx, "k"))
	assert.Equal(t, float64(-1), c.TTL(ctx, "k"))
}

func TestCache_ExpireTimeAndTTL(t *testing.T) {
	c, clock := newClockCache(t)
	ctx := context.Background()

	assert.Equal(t, int64(-2), c.ExpireTime(ctx, "k"))
	assert.Equal(t, float64(-2), c.TTL(ctx, "k"))

	_ = c.Set(ctx, "k", String("v"))
	assert.Equal(t, int64(-1), c.ExpireTime(ctx, "k"))
	assert.Equal(t, float64(-1), c.TTL(ctx, "k"))

	_, _ = c.Expire(ctx, "k", 1500*time.Millisecond, ExpireAlways)
	assert.Equal(t, clock.Now().Add(1500*time.Millisecond).Unix(), c.ExpireTime(ctx, "k"))
	assert.InDelta(t, 1.5, c.TTL(ctx, "k"), 0.0001)
}

func TestCache_ExpireNotifiesManager(t *testing.T) {
	c, clock := newClockCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "a", String("1"))
	_ = c.Set(ctx, "b", String("2"))
	_, _ = c.Expire(ctx, "a", time.Hour, ExpireAlways)
	_, _ = c.Expire(ctx, "b", time.Minute, ExpireAlways)

	select {
	case <-c.mailbox.notify:
	default:
		t.Fatal("expire should poke the manager")
	}
	assert.Equal(t, clock.Now().Add(time.Minute), c.mailbox.take(), "mailbox keeps the earliest instant")
	assert.True(t, c.mailbox.take().IsZero())
}
