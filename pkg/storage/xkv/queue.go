package xkv

import (
	"context"
	"time"

	"github.com/omeyang/zencache/pkg/observability/xlog"
	"github.com/omeyang/zencache/pkg/observability/xmetrics"
)

// =============================================================================
// FIFO 队列
// =============================================================================

// queue 是先进先出队列：push 追加到尾部，pop 从头部取出最旧的元素。
type queue struct {
	buf  []Value
	head int
}

func (q *queue) len() int { return len(q.buf) - q.head }

func (q *queue) push(v Value) int {
	q.buf = append(q.buf, v)
	return q.len()
}

func (q *queue) pop() (Value, bool) {
	if q.len() == 0 {
		return Nil, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = Value{}
	q.head++
	// 头部空洞超过一半时压缩，避免底层数组只增不减
	if q.head > len(q.buf)/2 {
		n := copy(q.buf, q.buf[q.head:])
		clear(q.buf[n:])
		q.buf = q.buf[:n]
		q.head = 0
	}
	return v, true
}

func (q *queue) items() []Value {
	return q.buf[q.head:]
}

func (q *queue) clone() *queue {
	buf := make([]Value, q.len())
	copy(buf, q.items())
	return &queue{buf: buf}
}

// =============================================================================
// 阻塞等待
// =============================================================================

// waiter 是某个 key 上的广播通道：push 时关闭并移除，等待者随即重新检查。
type waiter struct {
	ch   chan struct{}
	refs int
}

// acquireWaitLocked 登记一个等待者并返回其通道。
func (c *Cache) acquireWaitLocked(key string) *waiter {
	w, ok := c.waiters[key]
	if !ok {
		w = &waiter{ch: make(chan struct{})}
		c.waiters[key] = w
	}
	w.refs++
	return w
}

// releaseWait 注销等待者，最后一个离开的等待者负责清理映射。
func (c *Cache) releaseWait(key string, w *waiter) {
	c.mu.Lock()
	w.refs--
	if w.refs <= 0 && c.waiters[key] == w {
		delete(c.waiters, key)
	}
	c.mu.Unlock()
}

// notifyLocked 唤醒 key 上的全部等待者。
func (c *Cache) notifyLocked(key string) {
	if w, ok := c.waiters[key]; ok {
		close(w.ch)
		delete(c.waiters, key)
	}
}

// queueLocked 返回 key 上的队列。create 为 true 时按需创建。
// key 持有标量时返回 ErrWrongType。
func (c *Cache) queueLocked(key string, now time.Time, create bool) (*queue, error) {
	e, ok := c.lookupLocked(key, now)
	if !ok {
		if !create {
			return nil, nil
		}
		q := &queue{}
		c.entries[key] = &entry{queue: q}
		return q, nil
	}
	if e.queue == nil {
		return nil, ErrWrongType
	}
	return e.queue, nil
}

func (c *Cache) pushLocked(key string, v Value, now time.Time) (int, error) {
	if !v.scalar() {
		return 0, ErrInvalidValue
	}
	// 先检查再创建，避免被拒绝的写入留下空队列
	if e, ok := c.lookupLocked(key, now); ok {
		if e.queue == nil {
			return 0, ErrWrongType
		}
		if limit := c.opts.maxQueueLen; limit > 0 && e.queue.len() >= limit {
			return 0, ErrQueueFull
		}
	}
	q, err := c.queueLocked(key, now, true)
	if err != nil {
		return 0, err
	}
	n := q.push(v)
	c.notifyLocked(key)
	return n, nil
}

// =============================================================================
// 队列操作
// =============================================================================

// LPush 将 v 追加到 key 上队列的尾部并返回新长度。
//
// key 不存在时创建队列；持有标量时返回 ErrWrongType；
// 队列有界且已满时返回 ErrQueueFull。已有的 TTL 保持不变。
func (c *Cache) LPush(ctx context.Context, key string, v Value) (n int, err error) {
	_, span := c.start(ctx, "lpush")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushLocked(key, v, now)
}

// LLen 返回队列长度。key 不存在时为 0。
func (c *Cache) LLen(ctx context.Context, key string) (n int, err error) {
	_, span := c.start(ctx, "llen")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	q, err := c.queueLocked(key, now, false)
	if err != nil || q == nil {
		return 0, err
	}
	return q.len(), nil
}

// RPop 取出 key 上队列中最旧的元素。
//
// 队列为空或 key 不存在时阻塞，直到有新元素、timeout 到期或 ctx 结束：
//   - timeout 到期返回 (Nil, false, nil)
//   - ctx 结束返回 (Nil, false, ctx.Err())
//   - timeout <= 0 表示不设超时，只受 ctx 约束
//
// key 持有标量时立即返回 ErrWrongType。
func (c *Cache) RPop(ctx context.Context, key string, timeout time.Duration) (v Value, ok bool, err error) {
	ctx, span := c.start(ctx, "rpop")
	defer func() { span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Bool("found", ok)}}) }()

	return c.blockingPop(ctx, key, timeout, func(now time.Time) (Value, bool, error) {
		q, err := c.queueLocked(key, now, false)
		if err != nil || q == nil {
			return Nil, false, err
		}
		v, ok := q.pop()
		return v, ok, nil
	})
}

// RPopLPush 从 src 取出最旧的元素并追加到 dst，二者在同一临界区内完成。
//
// 阻塞语义与 RPop 相同。dst 持有标量或已满时返回错误且 src 保持不变。
// src 与 dst 相同时元素从头部轮转到尾部。
func (c *Cache) RPopLPush(ctx context.Context, src, dst string, timeout time.Duration) (v Value, ok bool, err error) {
	ctx, span := c.start(ctx, "rpoplpush")
	defer func() { span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Bool("found", ok)}}) }()

	return c.blockingPop(ctx, src, timeout, func(now time.Time) (Value, bool, error) {
		q, err := c.queueLocked(src, now, false)
		if err != nil || q == nil || q.len() == 0 {
			return Nil, false, err
		}
		if src != dst {
			if e, exists := c.lookupLocked(dst, now); exists {
				if e.queue == nil {
					return Nil, false, ErrWrongType
				}
				if limit := c.opts.maxQueueLen; limit > 0 && e.queue.len() >= limit {
					return Nil, false, ErrQueueFull
				}
			}
		}
		v, _ := q.pop()
		if _, err := c.pushLocked(dst, v, now); err != nil {
			// 上面的检查保证此处不会失败
			c.logger.Error(context.Background(), "rpoplpush push failed", xlog.Key(dst), xlog.Err(err))
			return Nil, false, err
		}
		return v, true, nil
	})
}

// blockingPop 在锁内反复尝试 try，失败时登记等待并在锁外阻塞。
func (c *Cache) blockingPop(ctx context.Context, key string, timeout time.Duration,
	try func(now time.Time) (Value, bool, error)) (Value, bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		c.mu.Lock()
		v, ok, err := try(c.now())
		if err != nil || ok {
			c.mu.Unlock()
			return v, ok, err
		}
		w := c.acquireWaitLocked(key)
		c.mu.Unlock()

		select {
		case <-w.ch:
			c.releaseWait(key, w)
		case <-deadline:
			c.releaseWait(key, w)
			return Nil, false, nil
		case <-ctx.Done():
			c.releaseWait(key, w)
			return Nil, false, ctx.Err()
		}
	}
}
