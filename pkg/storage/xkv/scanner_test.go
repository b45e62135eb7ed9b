package xkv

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runScanner 在后台启动扫描器，返回停止函数。
func runScanner(t *testing.T, c *Cache) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("scanner did not stop")
		}
	}
}

func TestSweep_RemovesDueKeys(t *testing.T) {
	c, clock := newClockCache(t)
	ctx := context.Background()

	_ = c.MSet(ctx, map[string]Value{"a": String("1"), "b": String("2"), "c": String("3")})
	_, _ = c.Expire(ctx, "a", time.Second, ExpireAlways)
	_, _ = c.Expire(ctx, "b", time.Minute, ExpireAlways)
	_ = c.mailbox.take()

	clock.Advance(time.Second)
	assert.Equal(t, 1, c.Sweep(ctx))

	stats := c.Stats()
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 1, stats.Volatile)
	assert.Equal(t, uint64(1), stats.Expired)
	assert.Equal(t, uint64(1), stats.Scans)
	assert.Equal(t, clock.Now().Add(59*time.Second), c.mailbox.take(), "soonest remaining deadline is reported")

	assert.Equal(t, 0, c.Sweep(ctx))
}

func TestRun_ExpiresKeysWithoutAccess(t *testing.T) {
	c, buf := newTestCache(t)
	ctx := context.Background()
	stop := runScanner(t, c)
	defer stop()

	_ = c.Set(ctx, "session", String("s"))
	_ = c.Set(ctx, "keep", String("k"))
	_, err := c.Expire(ctx, "session", 50*time.Millisecond, ExpireAlways)
	require.NoError(t, err)

	// 兜底间隔是 60s，只有 Manager 的唤醒才能让 Worker 及时扫描
	assert.Eventually(t, func() bool {
		return c.Stats().Keys == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, c.Stats().Volatile)
	assert.Contains(t, buf.String(), "expiry scanner starting")
}

func TestRun_AlreadyRunning(t *testing.T) {
	c, _ := newTestCache(t)
	stop := runScanner(t, c)
	defer stop()

	assert.Eventually(t, c.running.Load, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Run(context.Background()), ErrAlreadyRunning)
}

func TestRun_RecoversFromScanPanic(t *testing.T) {
	c, buf := newTestCache(t, WithScanIntervals(10*time.Millisecond, time.Second))
	var calls atomic.Int32
	c.beforeSweep = func() {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}

	stop := runScanner(t, c)
	defer stop()

	assert.Eventually(t, func() bool {
		return c.Stats().Scans >= 2
	}, 3*time.Second, 5*time.Millisecond, "worker keeps scanning after a panic")
	assert.Equal(t, uint64(1), c.Stats().ScanPanics)
	assert.Contains(t, buf.String(), "ttl scan panicked")
}

func TestRun_NextWakeTracksEarliestDeadline(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	stop := runScanner(t, c)
	defer stop()

	_ = c.Set(ctx, "k", String("v"))
	at := time.Now().Add(time.Hour).Truncate(time.Second)
	_, _ = c.ExpireAt(ctx, "k", at, ExpireAlways)

	assert.Eventually(t, func() bool {
		return c.Stats().NextWake.Equal(at)
	}, 3*time.Second, 5*time.Millisecond)
}

func TestSetScanIntervals(t *testing.T) {
	c, _ := newTestCache(t)

	assert.ErrorIs(t, c.SetScanIntervals(0, time.Second), ErrInvalidInterval)
	assert.ErrorIs(t, c.SetScanIntervals(time.Second, -1), ErrInvalidInterval)
	assert.Equal(t, DefaultWorkerInterval, c.workerEvery())

	require.NoError(t, c.SetScanIntervals(time.Second, 2*time.Second))
	assert.Equal(t, time.Second, c.workerEvery())
	assert.Equal(t, 2*time.Second, c.managerEvery())
}

func TestSetScanIntervals_WhileRunning(t *testing.T) {
	c, _ := newTestCache(t)
	stop := runScanner(t, c)
	defer stop()

	scans := c.Stats().Scans
	require.NoError(t, c.SetScanIntervals(10*time.Millisecond, 10*time.Millisecond))
	assert.Eventually(t, func() bool {
		return c.Stats().Scans > scans+3
	}, 3*time.Second, 5*time.Millisecond, "worker picks up the shorter interval")
}

func TestWakeMailbox(t *testing.T) {
	m := newWakeMailbox()
	assert.True(t, m.take().IsZero())

	base := time.Unix(1000, 0)
	m.offer(base.Add(time.Minute))
	m.offer(base)
	m.offer(base.Add(time.Hour))
	assert.Equal(t, base, m.take())
	assert.True(t, m.take().IsZero())

	// 多次通知合并为一个
	m.poke()
	m.poke()
	assert.Len(t, m.notify, 1)
}
