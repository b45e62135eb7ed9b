package xkv

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/omeyang/zencache/pkg/observability/xlog"
	"github.com/omeyang/zencache/pkg/observability/xmetrics"
)

const componentName = "xkv"

// =============================================================================
// Cache 定义
// =============================================================================

// Cache 是进程内的键值缓存门面。
//
// 所有非阻塞操作都在同一把互斥锁内完成，KeyStore 与 TtlTable 的变更对外表现为原子的。
// 阻塞操作（RPop、RPopLPush）在等待期间不持有锁。
//
// 过期有两条路径：
//   - 惰性过期：任何操作访问到已过期的 key 时，立即视为不存在并删除
//   - 后台扫描：Run 启动的 Worker/Manager 循环定期清理
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     map[string]time.Time
	waiters map[string]*waiter

	opts     *options
	logger   xlog.Logger
	patterns *lru.Cache[string, *regexp.Regexp]

	// 过期扫描器状态
	mailbox         *wakeMailbox
	pulse           chan struct{}
	workerInterval  atomic.Int64
	managerInterval atomic.Int64
	nextWake        atomic.Int64
	running         atomic.Bool
	beforeSweep     func()

	stats counters
}

type entry struct {
	val   Value
	queue *queue
}

type counters struct {
	hits       atomic.Uint64
	misses     atomic.Uint64
	expired    atomic.Uint64
	scans      atomic.Uint64
	scanPanics atomic.Uint64
}

// New 创建 Cache。
//
// 返回的 Cache 立即可用；过期扫描器需要调用 Run 启动，
// 不启动时仍依赖惰性过期保证过期 key 不可见。
func New(opts ...Option) (*Cache, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	patterns, err := lru.New[string, *regexp.Regexp](o.patternCacheSize)
	if err != nil {
		return nil, fmt.Errorf("xkv: create pattern cache: %w", err)
	}

	logger := o.logger
	if logger == nil {
		logger = xlog.Default()
	}

	c := &Cache{
		entries:  make(map[string]*entry),
		ttl:      make(map[string]time.Time),
		waiters:  make(map[string]*waiter),
		opts:     o,
		logger:   logger.With(xlog.Component(componentName)),
		patterns: patterns,
		mailbox:  newWakeMailbox(),
		pulse:    make(chan struct{}, 1),
	}
	c.workerInterval.Store(int64(o.workerInterval))
	c.managerInterval.Store(int64(o.managerInterval))
	return c, nil
}

// =============================================================================
// 内部辅助（调用方必须持有 c.mu）
// =============================================================================

// lookupLocked 返回 key 对应的存活条目，已过期的条目在此处被删除。
func (c *Cache) lookupLocked(key string, now time.Time) (*entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if at, has := c.ttl[key]; has && !now.Before(at) {
		c.removeLocked(key)
		c.stats.expired.Add(1)
		return nil, false
	}
	return e, true
}

// removeLocked 同时删除条目与 TTL 记录。
func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	delete(c.ttl, key)
}

// storeLocked 以标量覆盖 key，并清除 TTL。
func (c *Cache) storeLocked(key string, v Value) {
	c.entries[key] = &entry{val: v}
	delete(c.ttl, key)
}

// snapshot 返回条目对外可见的值。
func (e *entry) snapshot() Value {
	if e.queue != nil {
		return listOf(e.queue.items())
	}
	return e.val
}

// clone 深拷贝条目。
func (e *entry) clone() *entry {
	if e.queue != nil {
		return &entry{queue: e.queue.clone()}
	}
	return &entry{val: e.val}
}

func (c *Cache) now() time.Time {
	return c.opts.clock.Now()
}

// start 为门面操作开启观测跨度。
func (c *Cache) start(ctx context.Context, operation string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, c.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: operation,
		Kind:      xmetrics.KindInternal,
	})
}

// =============================================================================
// 管理操作
// =============================================================================

// FlushAll 原子地清空所有条目与 TTL 记录，并唤醒所有阻塞中的弹出者。
func (c *Cache) FlushAll(ctx context.Context) bool {
	ctx, span := c.start(ctx, "flushall")
	defer span.End(xmetrics.Result{})

	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]*entry)
	c.ttl = make(map[string]time.Time)
	for key, w := range c.waiters {
		close(w.ch)
		delete(c.waiters, key)
	}
	c.mu.Unlock()

	c.logger.Info(ctx, "cache flushed", xlog.Count(int64(n)))
	return true
}

// Ping 返回 "pong"。
func (c *Cache) Ping(ctx context.Context) string {
	_, span := c.start(ctx, "ping")
	defer span.End(xmetrics.Result{})
	return "pong"
}

// DBSize 返回存活 key 的数量。
func (c *Cache) DBSize(ctx context.Context) int {
	_, span := c.start(ctx, "dbsize")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if _, ok := c.lookupLocked(key, now); ok {
			n++
		}
	}
	return n
}

// =============================================================================
// 统计信息
// =============================================================================

// Stats 是 Cache 的统计快照。
type Stats struct {
	// Keys 当前条目数（可能包含尚未被清理的逻辑过期 key）。
	Keys int
	// Volatile 带 TTL 的条目数。
	Volatile int
	// Hits Get/MGet 命中次数。
	Hits uint64
	// Misses Get/MGet 未命中次数。
	Misses uint64
	// Expired 因过期被删除的 key 总数（惰性与扫描合计）。
	Expired uint64
	// Scans Worker 完成的扫描次数。
	Scans uint64
	// ScanPanics 扫描中被恢复的 panic 次数。
	ScanPanics uint64
	// NextWake Manager 已知的最早唤醒时间，零值表示没有。
	NextWake time.Time
}

// Stats 返回统计快照。
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	keys, volatile := len(c.entries), len(c.ttl)
	c.mu.Unlock()

	s := Stats{
		Keys:       keys,
		Volatile:   volatile,
		Hits:       c.stats.hits.Load(),
		Misses:     c.stats.misses.Load(),
		Expired:    c.stats.expired.Load(),
		Scans:      c.stats.scans.Load(),
		ScanPanics: c.stats.scanPanics.Load(),
	}
	if ns := c.nextWake.Load(); ns != 0 {
		s.NextWake = time.Unix(0, ns)
	}
	return s
}

// LogValue 实现 slog.LogValuer，便于直接记录统计快照。
func (s Stats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("keys", s.Keys),
		slog.Int("volatile", s.Volatile),
		slog.Uint64("hits", s.Hits),
		slog.Uint64("misses", s.Misses),
		slog.Uint64("expired", s.Expired),
		slog.Uint64("scans", s.Scans),
		slog.Uint64("scan_panics", s.ScanPanics),
	}
	if !s.NextWake.IsZero() {
		attrs = append(attrs, slog.Time("next_wake", s.NextWake))
	}
	return slog.GroupValue(attrs...)
}
