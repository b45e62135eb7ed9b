package xkv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omeyang/zencache/pkg/lifecycle/xrun"
	"github.com/omeyang/zencache/pkg/observability/xlog"
	"github.com/omeyang/zencache/pkg/observability/xmetrics"
)

// =============================================================================
// 唤醒信箱
// =============================================================================

// wakeMailbox 收集候选唤醒时间，只保留最早的一个。
//
// 设计决策: Worker 上报与 ExpireAt 通知都是"更早的时间才有意义"，
// 因此用"最小值 + 1 缓冲通知通道"替代无界队列：生产者 O(1) 且永不阻塞，
// 重复通知自然合并，Manager 看到的最早时间与逐条消费无界队列一致。
type wakeMailbox struct {
	mu     sync.Mutex
	at     time.Time
	notify chan struct{}
}

func newWakeMailbox() *wakeMailbox {
	return &wakeMailbox{notify: make(chan struct{}, 1)}
}

// offer 提交一个候选时间。
func (m *wakeMailbox) offer(at time.Time) {
	m.mu.Lock()
	if m.at.IsZero() || at.Before(m.at) {
		m.at = at
	}
	m.mu.Unlock()

	m.poke()
}

// poke 只唤醒 Manager 重新计算等待时长。
func (m *wakeMailbox) poke() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// take 取走当前最早的候选时间，没有时返回零值。
func (m *wakeMailbox) take() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := m.at
	m.at = time.Time{}
	return at
}

// =============================================================================
// 运行
// =============================================================================

// Run 启动过期扫描器的 Worker 与 Manager 循环，阻塞直到 ctx 结束。
//
// ctx 取消时返回 nil。每个 Cache 只能 Run 一次，再次调用返回 ErrAlreadyRunning。
func (c *Cache) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	c.logger.Info(ctx, "expiry scanner starting",
		slog.Duration("worker_interval", c.workerEvery()),
		slog.Duration("manager_interval", c.managerEvery()),
	)

	g, _ := xrun.NewGroup(ctx, xrun.WithName("ttl-scanner"), xrun.WithLogger(c.logger))
	g.GoWithName("ttl-scanner-worker", c.runWorker)
	g.GoWithName("ttl-scanner-manager", c.runManager)
	err := g.Wait()

	c.logger.Info(ctx, "expiry scanner stopped")
	return err
}

// SetScanIntervals 在运行时调整 Worker 与 Manager 的兜底间隔，
// 下一次等待开始生效。任一参数非正时返回 ErrInvalidInterval 且不做修改。
func (c *Cache) SetScanIntervals(worker, manager time.Duration) error {
	if worker <= 0 || manager <= 0 {
		return fmt.Errorf("%w: worker=%s manager=%s", ErrInvalidInterval, worker, manager)
	}
	c.workerInterval.Store(int64(worker))
	c.managerInterval.Store(int64(manager))
	// 让两个循环立即按新间隔重新计时
	c.pulseWorker()
	c.mailbox.poke()
	return nil
}

func (c *Cache) workerEvery() time.Duration {
	return time.Duration(c.workerInterval.Load())
}

func (c *Cache) managerEvery() time.Duration {
	return time.Duration(c.managerInterval.Load())
}

func (c *Cache) pulseWorker() {
	select {
	case c.pulse <- struct{}{}:
	default:
	}
}

// =============================================================================
// Worker
// =============================================================================

// runWorker 每次被唤醒时扫描一遍 TTL 表，然后等待 Manager 的脉冲或兜底间隔。
func (c *Cache) runWorker(ctx context.Context) error {
	for {
		c.scanOnce(ctx)

		timer := time.NewTimer(c.workerEvery())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-c.pulse:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// scanOnce 执行一次受保护的扫描，panic 被记录后循环继续。
func (c *Cache) scanOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.scanPanics.Add(1)
			c.logger.Stack(ctx, "ttl scan panicked", slog.Any("panic", r))
		}
	}()
	c.Sweep(ctx)
}

// Sweep 同步执行一次扫描：删除所有已到期的 key，返回删除数量。
//
// 尚未到期的最早时间会上报给 Manager。Run 之外也可以直接调用。
func (c *Cache) Sweep(ctx context.Context) (removed int) {
	ctx, span := c.start(ctx, "sweep")
	defer func() {
		span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Int("expired", removed)}})
	}()

	if c.beforeSweep != nil {
		c.beforeSweep()
	}

	now := c.now()
	var soonest time.Time
	c.mu.Lock()
	for key, at := range c.ttl {
		if !now.Before(at) {
			c.removeLocked(key)
			removed++
			continue
		}
		if soonest.IsZero() || at.Before(soonest) {
			soonest = at
		}
	}
	c.mu.Unlock()

	c.stats.scans.Add(1)
	if removed > 0 {
		c.stats.expired.Add(uint64(removed))
		if r, ok := c.opts.observer.(xmetrics.ExpiredRecorder); ok {
			r.RecordExpired(ctx, componentName, int64(removed))
		}
		c.logger.Debug(ctx, "expired keys removed", xlog.Count(int64(removed)))
	}
	if !soonest.IsZero() {
		c.mailbox.offer(soonest)
	}
	return removed
}

// =============================================================================
// Manager
// =============================================================================

// runManager 维护已知的最早唤醒时间，到点后向 Worker 发送脉冲。
//
// 休眠时长为 min(最早时间 - now, managerInterval)，
// 新的候选时间到达时提前醒来重新计算。
func (c *Cache) runManager(ctx context.Context) error {
	var next time.Time
	for {
		if at := c.mailbox.take(); !at.IsZero() && (next.IsZero() || at.Before(next)) {
			next = at
		}

		now := c.now()
		if !next.IsZero() && !now.Before(next) {
			c.pulseWorker()
			next = time.Time{}
		}
		if next.IsZero() {
			c.nextWake.Store(0)
		} else {
			c.nextWake.Store(next.UnixNano())
		}

		wait := c.managerEvery()
		if !next.IsZero() {
			if d := next.Sub(now); d < wait {
				wait = d
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-c.mailbox.notify:
		case <-timer.C:
		}
		timer.Stop()
	}
}
