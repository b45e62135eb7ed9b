package xkv

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/zencache/pkg/observability/xlog"
)

// fakeClock 是可手动推进的时钟。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// newTestCache 创建日志写入缓冲区的 Cache。
func newTestCache(t *testing.T, opts ...Option) (*Cache, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	logger, cleanup, err := xlog.New().SetOutput(buf).SetLevel(xlog.LevelDebug).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })

	c, err := New(append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return c, buf
}

// newClockCache 创建使用假时钟的 Cache。
func newClockCache(t *testing.T, opts ...Option) (*Cache, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	c, _ := newTestCache(t, append([]Option{WithClock(clock)}, opts...)...)
	return c, clock
}

// syncBuffer 是并发安全的 bytes.Buffer，扫描 goroutine 与测试会同时访问。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
