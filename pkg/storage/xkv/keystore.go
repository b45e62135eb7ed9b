package xkv

import (
	"context"
	"sort"
	"time"

	"github.com/omeyang/zencache/pkg/observability/xmetrics"
)

// =============================================================================
// 单 key 读写
// =============================================================================

// Get 返回 key 的值。队列形态返回其快照。
func (c *Cache) Get(ctx context.Context, key string) (v Value, ok bool) {
	_, span := c.start(ctx, "get")
	defer func() { span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Bool("found", ok)}}) }()

	now := c.now()
	c.mu.Lock()
	e, ok := c.lookupLocked(key, now)
	if ok {
		v = e.snapshot()
	}
	c.mu.Unlock()

	c.countLookup(ok)
	return v, ok
}

// Set 无条件写入 key 并清除其 TTL。
// v 必须是 String 或 Int，否则返回 ErrInvalidValue。
func (c *Cache) Set(ctx context.Context, key string, v Value) (err error) {
	_, span := c.start(ctx, "set")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	if !v.scalar() {
		return ErrInvalidValue
	}
	c.mu.Lock()
	c.storeLocked(key, v)
	c.mu.Unlock()
	return nil
}

// SetNX 仅在 key 不存在时写入，返回是否写入。
func (c *Cache) SetNX(ctx context.Context, key string, v Value) (ok bool, err error) {
	_, span := c.start(ctx, "setnx")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	if !v.scalar() {
		return false, ErrInvalidValue
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.lookupLocked(key, now); exists {
		return false, nil
	}
	c.storeLocked(key, v)
	return true, nil
}

// GetSet 原子地读取旧值并写入新值，同时清除 TTL。
// 返回的 bool 表示旧值是否存在。
func (c *Cache) GetSet(ctx context.Context, key string, v Value) (old Value, ok bool, err error) {
	_, span := c.start(ctx, "getset")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	if !v.scalar() {
		return Nil, false, ErrInvalidValue
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, exists := c.lookupLocked(key, now); exists {
		old, ok = e.snapshot(), true
	}
	c.storeLocked(key, v)
	return old, ok, nil
}

// GetDel 原子地读取并删除 key（TTL 一并删除）。
func (c *Cache) GetDel(ctx context.Context, key string) (v Value, ok bool) {
	_, span := c.start(ctx, "getdel")
	defer func() { span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Bool("found", ok)}}) }()

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookupLocked(key, now)
	if !ok {
		return Nil, false
	}
	v = e.snapshot()
	c.removeLocked(key)
	return v, true
}

// Delete 删除 key 及其 TTL，返回是否删除了存活的条目。
func (c *Cache) Delete(ctx context.Context, key string) bool {
	_, span := c.start(ctx, "delete")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lookupLocked(key, now); !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

// Exists 报告 key 是否存在。
func (c *Cache) Exists(ctx context.Context, key string) bool {
	_, span := c.start(ctx, "exists")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookupLocked(key, now)
	return ok
}

// =============================================================================
// 多 key 读写
// =============================================================================

// MSet 写入全部键值并清除它们的 TTL。任一值非法时不做任何修改。
func (c *Cache) MSet(ctx context.Context, kvs map[string]Value) (err error) {
	_, span := c.start(ctx, "mset")
	defer func() { span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int("keys", len(kvs))}}) }()

	if err := validateAll(kvs); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, v := range kvs {
		c.storeLocked(key, v)
	}
	return nil
}

// MGet 返回每个请求 key 的值，不存在的 key 映射为 Nil。
func (c *Cache) MGet(ctx context.Context, keys ...string) map[string]Value {
	_, span := c.start(ctx, "mget")
	defer span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Int("keys", len(keys))}})

	out := make(map[string]Value, len(keys))
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		e, ok := c.lookupLocked(key, now)
		c.countLookup(ok)
		if !ok {
			out[key] = Nil
			continue
		}
		out[key] = e.snapshot()
	}
	return out
}

// MSetNX 仅当所有 key 都不存在时才全部写入。
// 任一 key 已存在时不做任何修改并返回 false。
func (c *Cache) MSetNX(ctx context.Context, kvs map[string]Value) (ok bool, err error) {
	_, span := c.start(ctx, "msetnx")
	defer func() { span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int("keys", len(kvs))}}) }()

	if err := validateAll(kvs); err != nil {
		return false, err
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range kvs {
		if _, exists := c.lookupLocked(key, now); exists {
			return false, nil
		}
	}
	for key, v := range kvs {
		c.storeLocked(key, v)
	}
	return true, nil
}

func validateAll(kvs map[string]Value) error {
	for _, v := range kvs {
		if !v.scalar() {
			return ErrInvalidValue
		}
	}
	return nil
}

// =============================================================================
// 字符串与计数
// =============================================================================

// StrLen 返回值字符串形式的字节长度，key 不存在时返回 -1。
// Int 按十进制文本计算长度。
func (c *Cache) StrLen(ctx context.Context, key string) (n int, err error) {
	_, span := c.start(ctx, "strlen")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookupLocked(key, now)
	if !ok {
		return -1, nil
	}
	if e.queue != nil {
		return 0, ErrWrongType
	}
	return len(e.val.Str()), nil
}

// Append 将 s 拼接到 key 当前值的字符串形式之后。
//
// key 不存在时等同于 Set（不清除 TTL，因为此时没有 TTL）；
// Int 先转为十进制文本再拼接，结果为 String；
// 队列形态返回 (false, ErrWrongType)。已有的 TTL 保持不变。
func (c *Cache) Append(ctx context.Context, key, s string) (ok bool, err error) {
	_, span := c.start(ctx, "append")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, exists := c.lookupLocked(key, now)
	if !exists {
		c.entries[key] = &entry{val: String(s)}
		return true, nil
	}
	if e.queue != nil {
		return false, ErrWrongType
	}
	e.val = String(e.val.Str() + s)
	return true, nil
}

// Incr 将 key 加 1。
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	return c.add(ctx, "incr", key, 1)
}

// Decr 将 key 减 1。
func (c *Cache) Decr(ctx context.Context, key string) (int64, error) {
	return c.add(ctx, "decr", key, -1)
}

// IncrBy 将 key 加 delta。
//
// key 不存在时从 0 开始；String 可解析为十进制 int64 时先转换为 Int；
// 其他字符串返回 ErrNotInteger 且原值不变；队列形态返回 ErrWrongType。
// 溢出按 int64 补码回绕。已有的 TTL 保持不变。
func (c *Cache) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.add(ctx, "incrby", key, delta)
}

// DecrBy 将 key 减 delta，语义同 IncrBy。
func (c *Cache) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return c.add(ctx, "decrby", key, -delta)
}

func (c *Cache) add(ctx context.Context, op, key string, delta int64) (n int64, err error) {
	_, span := c.start(ctx, op)
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, exists := c.lookupLocked(key, now)
	if !exists {
		c.entries[key] = &entry{val: Int(delta)}
		return delta, nil
	}
	if e.queue != nil {
		return 0, ErrWrongType
	}
	cur, ok := e.val.Int64()
	if !ok {
		return 0, ErrNotInteger
	}
	n = cur + delta
	e.val = Int(n)
	return n, nil
}

// =============================================================================
// 键空间
// =============================================================================

// Keys 返回匹配 pattern 的存活 key，按字典序排列。
//
// pattern 为空时返回全部 key；否则按 RE2 正则做非锚定匹配
// （"^user:" 才表示前缀）。非法正则返回包装了 ErrInvalidPattern 的错误。
func (c *Cache) Keys(ctx context.Context, pattern string) (keys []string, err error) {
	_, span := c.start(ctx, "keys")
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	re, err := c.compile(pattern)
	if err != nil {
		return nil, err
	}

	now := c.now()
	c.mu.Lock()
	keys = make([]string, 0, len(c.entries))
	for key := range c.entries {
		if _, ok := c.lookupLocked(key, now); !ok {
			continue
		}
		if re == nil || re.MatchString(key) {
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()

	sort.Strings(keys)
	return keys, nil
}

// Rename 将 key 的值移动到 newkey。
//
// key 不存在时返回 false；newkey 已存在时被覆盖。
// key 的 TTL 被丢弃，newkey 移动后不带 TTL。key 与 newkey 相同时直接返回 true。
func (c *Cache) Rename(ctx context.Context, key, newkey string) bool {
	_, span := c.start(ctx, "rename")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(key, newkey, now, true)
}

// RenameNX 同 Rename，但 newkey 已存在（包括与 key 相同）时返回 false。
func (c *Cache) RenameNX(ctx context.Context, key, newkey string) bool {
	_, span := c.start(ctx, "renamenx")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moveLocked(key, newkey, now, false)
}

func (c *Cache) moveLocked(key, newkey string, now time.Time, overwrite bool) bool {
	e, ok := c.lookupLocked(key, now)
	if !ok {
		return false
	}
	if _, exists := c.lookupLocked(newkey, now); exists && !overwrite {
		return false
	}
	if key == newkey {
		return true
	}
	c.removeLocked(key)
	c.removeLocked(newkey)
	c.entries[newkey] = e
	if e.queue != nil {
		c.notifyLocked(newkey)
	}
	return true
}

// Copy 将 src 的值深拷贝到 dst。
//
// src 不存在，或 dst 已存在且 replace 为 false 时返回 false。
// src 的 TTL 不会复制，dst 原有的 TTL 被清除。
func (c *Cache) Copy(ctx context.Context, src, dst string, replace bool) bool {
	_, span := c.start(ctx, "copy")
	defer span.End(xmetrics.Result{})

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookupLocked(src, now)
	if !ok {
		return false
	}
	if _, exists := c.lookupLocked(dst, now); exists && !replace {
		return false
	}
	if src == dst {
		return true
	}
	clone := e.clone()
	c.removeLocked(dst)
	c.entries[dst] = clone
	if clone.queue != nil {
		c.notifyLocked(dst)
	}
	return true
}

func (c *Cache) countLookup(hit bool) {
	if hit {
		c.stats.hits.Add(1)
		return
	}
	c.stats.misses.Add(1)
}
