package xkv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omeyang/zencache/pkg/observability/xmetrics"
)

// =============================================================================
// 过期条件
// =============================================================================

// ExpireOption 是 ExpireAt 的条件选项。
type ExpireOption uint8

const (
	// ExpireAlways 无条件设置过期时间。
	ExpireAlways ExpireOption = iota
	// ExpireNX 仅当 key 当前没有 TTL 时设置。
	ExpireNX
	// ExpireXX 仅当 key 当前已有 TTL 时设置。
	ExpireXX
	// ExpireGT 仅当新时间严格晚于现有 TTL 时设置，没有 TTL 时不设置。
	ExpireGT
	// ExpireLT 仅当新时间严格早于现有 TTL 时设置，没有 TTL 时不设置。
	ExpireLT
)

// String 返回选项的命令名，ExpireAlways 为空串。
func (o ExpireOption) String() string {
	switch o {
	case ExpireAlways:
		return ""
	case ExpireNX:
		return "NX"
	case ExpireXX:
		return "XX"
	case ExpireGT:
		return "GT"
	case ExpireLT:
		return "LT"
	default:
		return fmt.Sprintf("ExpireOption(%d)", uint8(o))
	}
}

// ParseExpireOption 解析 ""、"NX"、"XX"、"GT"、"LT"（不区分大小写）。
func ParseExpireOption(s string) (ExpireOption, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return ExpireAlways, nil
	case "NX":
		return ExpireNX, nil
	case "XX":
		return ExpireXX, nil
	case "GT":
		return ExpireGT, nil
	case "LT":
		return ExpireLT, nil
	default:
		return ExpireAlways, fmt.Errorf("%w: %q", ErrInvalidExpireOption, s)
	}
}

// allow 判断在现有 TTL 状态下是否允许设置新时间。
func (o ExpireOption) allow(cur time.Time, hasTTL bool, at time.Time) (bool, error) {
	switch o {
	case ExpireAlways:
		return true, nil
	case ExpireNX:
		return !hasTTL, nil
	case ExpireXX:
		return hasTTL, nil
	case ExpireGT:
		return hasTTL && at.After(cur), nil
	case ExpireLT:
		return hasTTL && at.Before(cur), nil
	default:
		return false, fmt.Errorf("%w: %d", ErrInvalidExpireOption, uint8(o))
	}
}

// =============================================================================
// TTL 操作
// =============================================================================

// Expire 设置 key 在 d 之后过期，等同于 ExpireAt(now+d)。
func (c *Cache) Expire(ctx context.Context, key string, d time.Duration, opt ExpireOption) (bool, error) {
	return c.expireAt(ctx, "expire", key, c.now().Add(d), opt)
}

// ExpireAt 设置 key 在绝对时间 at 过期。
//
// key 不存在时返回 false；条件不满足时返回 false 且不做修改；
// 未知选项返回 ErrInvalidExpireOption。at 已经过去时 key 会在下一次访问
// 或扫描时被删除。每次成功设置都会通知过期扫描器的 Manager。
func (c *Cache) ExpireAt(ctx context.Context, key string, at time.Time, opt ExpireOption) (bool, error) {
	return c.expireAt(ctx, "expireat", key, at, opt)
}

func (c *Cache) expireAt(ctx context.Context, op, key string, at time.Time, opt ExpireOption) (ok bool, err error) {
	_, span := c.start(ctx, op)
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.String("option", opt.String())}})
	}()

	now := c.now()
	c.mu.Lock()
	if _, exists := c.lookupLocked(key, now); !exists {
		c.mu.Unlock()
		if _, err := opt.allow(time.Time{}, false, at); err != nil {
			return false, err
		}
		return false, nil
	}
	cur, hasTTL := c.ttl[key]
	ok, err = opt.allow(cur, hasTTL, at)
	if err != nil || !ok {
		c.mu.Unlock()
		return false, err
	}
	c.ttl[key] = at
	c.mu.Unlock()

	c.mailbox.offer(at)
	return true, nil
}

// Persist 移除 key 的 TTL，返回是否移除了 TTL。
func (c *Cache) Persist(ctx context.Context, key string) bool {
	_, span := c.start(ctx, "persist")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lookupLocked(key, now); !ok {
		return false
	}
	if _, ok := c.ttl[key]; !ok {
		return false
	}
	delete(c.ttl, key)
	return true
}

// ExpireTime 返回 key 过期的 Unix 秒。
// key 不存在返回 -2，没有 TTL 返回 -1。
func (c *Cache) ExpireTime(ctx context.Context, key string) int64 {
	_, span := c.start(ctx, "expiretime")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lookupLocked(key, now); !ok {
		return -2
	}
	at, ok := c.ttl[key]
	if !ok {
		return -1
	}
	return at.Unix()
}

// TTL 返回 key 剩余存活秒数（含小数）。
// key 不存在返回 -2，没有 TTL 返回 -1。
func (c *Cache) TTL(ctx context.Context, key string) float64 {
	_, span := c.start(ctx, "ttl")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lookupLocked(key, now); !ok {
		return -2
	}
	at, ok := c.ttl[key]
	if !ok {
		return -1
	}
	// lookupLocked 已保证 at 晚于 now
	return at.Sub(now).Seconds()
}
