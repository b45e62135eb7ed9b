package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/omeyang/zencache/pkg/observability/xlog"
	"github.com/omeyang/zencache/pkg/storage/xkv"
)

// defaultPopTimeout 是控制台 rpop/rpoplpush 未指定超时时的等待时长。
const defaultPopTimeout = time.Second

var (
	errUnknownCommand = errors.New("unknown command")
	errNoSuchKey      = errors.New("no such key")
	errNotInteger     = errors.New("value is not an integer or out of range")
	errSyntax         = errors.New("syntax error")
)

// handler 执行一条控制台命令并返回要打印的文本。
type handler func(ctx context.Context, c *console, args []string) (string, error)

// commandSpec 描述一条控制台命令。
type commandSpec struct {
	usage   string
	summary string
	minArgs int
	// maxArgs 为 -1 表示不限制
	maxArgs int
	run     handler
}

// console 把文本命令翻译为 Cache 调用。
type console struct {
	cache    *xkv.Cache
	logger   xlog.LoggerWithLevel
	commands map[string]commandSpec
}

func newConsole(cache *xkv.Cache, logger xlog.LoggerWithLevel) *console {
	return &console{cache: cache, logger: logger, commands: commandTable()}
}

// Execute 执行命令。命令名不区分大小写。
func (c *console) Execute(ctx context.Context, name string, args []string) (string, error) {
	spec, ok := c.commands[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w %q, try 'help'", errUnknownCommand, name)
	}
	if len(args) < spec.minArgs || (spec.maxArgs >= 0 && len(args) > spec.maxArgs) {
		return "", usagef("wrong number of arguments, usage: %s", spec.usage)
	}
	return spec.run(ctx, c, args)
}

// =============================================================================
// 命令表
// =============================================================================

func commandTable() map[string]commandSpec {
	return map[string]commandSpec{
		// 单 key 读写
		"get":    {"get <key>", "读取 key", 1, 1, cmdGet},
		"set":    {"set <key> <value>", "写入 key 并清除 TTL", 2, 2, cmdSet},
		"setnx":  {"setnx <key> <value>", "key 不存在时写入", 2, 2, cmdSetNX},
		"getset": {"getset <key> <value>", "写入并返回旧值", 2, 2, cmdGetSet},
		"getdel": {"getdel <key>", "读取并删除", 1, 1, cmdGetDel},
		"del":    {"del <key> [key ...]", "删除 key", 1, -1, cmdDel},

		// 多 key 读写
		"mset":   {"mset <key> <value> [key value ...]", "批量写入", 2, -1, cmdMSet},
		"mget":   {"mget <key> [key ...]", "批量读取", 1, -1, cmdMGet},
		"msetnx": {"msetnx <key> <value> [key value ...]", "全部不存在时批量写入", 2, -1, cmdMSetNX},

		// 字符串与计数
		"strlen": {"strlen <key>", "值的字节长度，不存在为 -1", 1, 1, cmdStrLen},
		"append": {"append <key> <value>", "追加字符串", 2, 2, cmdAppend},
		"incr":   {"incr <key>", "加 1", 1, 1, counter(1, false)},
		"decr":   {"decr <key>", "减 1", 1, 1, counter(-1, false)},
		"incrby": {"incrby <key> <delta>", "加 delta", 2, 2, counter(1, true)},
		"decrby": {"decrby <key> <delta>", "减 delta", 2, 2, counter(-1, true)},

		// 键空间
		"keys":     {"keys [regexp]", "列出匹配的 key", 0, 1, cmdKeys},
		"exists":   {"exists <key> [key ...]", "存在的 key 数量", 1, -1, cmdExists},
		"rename":   {"rename <key> <newkey>", "重命名", 2, 2, cmdRename},
		"renamenx": {"renamenx <key> <newkey>", "newkey 不存在时重命名", 2, 2, cmdRenameNX},
		"copy":     {"copy <src> <dst> [REPLACE]", "复制值（不复制 TTL）", 2, 3, cmdCopy},

		// 过期时间
		"expire":     {"expire <key> <seconds> [NX|XX|GT|LT]", "设置相对过期时间", 2, 3, cmdExpire},
		"expireat":   {"expireat <key> <unix-seconds> [NX|XX|GT|LT]", "设置绝对过期时间", 2, 3, cmdExpireAt},
		"persist":    {"persist <key>", "移除 TTL", 1, 1, cmdPersist},
		"expiretime": {"expiretime <key>", "过期的 Unix 秒", 1, 1, cmdExpireTime},
		"ttl":        {"ttl <key>", "剩余秒数", 1, 1, cmdTTL},

		// 队列
		"lpush":     {"lpush <key> <value> [value ...]", "追加到队尾", 2, -1, cmdLPush},
		"rpop":      {"rpop <key> [timeout-seconds]", "取出最旧元素，空时等待", 1, 2, cmdRPop},
		"llen":      {"llen <key>", "队列长度", 1, 1, cmdLLen},
		"rpoplpush": {"rpoplpush <src> <dst> [timeout-seconds]", "原子地移动最旧元素", 2, 3, cmdRPopLPush},

		// 管理
		"flushall": {"flushall", "清空所有 key", 0, 0, cmdFlushAll},
		"dbsize":   {"dbsize", "存活 key 数量", 0, 0, cmdDBSize},
		"stats":    {"stats", "统计信息", 0, 0, cmdStats},
		"setlog":   {"setlog [level]", "查看/设置日志级别", 0, 1, cmdSetLog},
		"ping":     {"ping", "连通性检查", 0, 0, cmdPing},
		"help":     {"help", "显示命令列表", 0, 0, cmdHelp},
	}
}

// =============================================================================
// 输出格式
// =============================================================================

const replyOK = "OK"

func formatInt(n int64) string { return "(integer) " + strconv.FormatInt(n, 10) }

func formatBool(b bool) string {
	if b {
		return formatInt(1)
	}
	return formatInt(0)
}

func formatValue(v xkv.Value, ok bool) string {
	if !ok {
		return xkv.Nil.String()
	}
	return v.String()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "(empty list)"
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d) %s", i+1, item)
	}
	return b.String()
}

// =============================================================================
// 参数解析
// =============================================================================

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errNotInteger
	}
	return n, nil
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("timeout %q is not a non-negative number", s)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func popTimeout(args []string, idx int) (time.Duration, error) {
	if len(args) <= idx {
		return defaultPopTimeout, nil
	}
	return parseSeconds(args[idx])
}

func expireOption(args []string, idx int) (xkv.ExpireOption, error) {
	if len(args) <= idx {
		return xkv.ExpireAlways, nil
	}
	return xkv.ParseExpireOption(args[idx])
}

func pairs(args []string) (map[string]xkv.Value, error) {
	if len(args)%2 != 0 {
		return nil, usagef("key/value arguments must come in pairs")
	}
	kvs := make(map[string]xkv.Value, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		kvs[args[i]] = xkv.String(args[i+1])
	}
	return kvs, nil
}

// =============================================================================
// 命令实现
// =============================================================================

func cmdGet(ctx context.Context, c *console, args []string) (string, error) {
	return formatValue(c.cache.Get(ctx, args[0])), nil
}

func cmdSet(ctx context.Context, c *console, args []string) (string, error) {
	if err := c.cache.Set(ctx, args[0], xkv.String(args[1])); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdSetNX(ctx context.Context, c *console, args []string) (string, error) {
	ok, err := c.cache.SetNX(ctx, args[0], xkv.String(args[1]))
	if err != nil {
		return "", err
	}
	return formatBool(ok), nil
}

func cmdGetSet(ctx context.Context, c *console, args []string) (string, error) {
	old, ok, err := c.cache.GetSet(ctx, args[0], xkv.String(args[1]))
	if err != nil {
		return "", err
	}
	return formatValue(old, ok), nil
}

func cmdGetDel(ctx context.Context, c *console, args []string) (string, error) {
	return formatValue(c.cache.GetDel(ctx, args[0])), nil
}

func cmdDel(ctx context.Context, c *console, args []string) (string, error) {
	var n int64
	for _, key := range args {
		if c.cache.Delete(ctx, key) {
			n++
		}
	}
	return formatInt(n), nil
}

func cmdMSet(ctx context.Context, c *console, args []string) (string, error) {
	kvs, err := pairs(args)
	if err != nil {
		return "", err
	}
	if err := c.cache.MSet(ctx, kvs); err != nil {
		return "", err
	}
	return replyOK, nil
}

func cmdMGet(ctx context.Context, c *console, args []string) (string, error) {
	values := c.cache.MGet(ctx, args...)
	items := make([]string, len(args))
	for i, key := range args {
		items[i] = values[key].String()
	}
	return formatList(items), nil
}

func cmdMSetNX(ctx context.Context, c *console, args []string) (string, error) {
	kvs, err := pairs(args)
	if err != nil {
		return "", err
	}
	ok, err := c.cache.MSetNX(ctx, kvs)
	if err != nil {
		return "", err
	}
	return formatBool(ok), nil
}

func cmdStrLen(ctx context.Context, c *console, args []string) (string, error) {
	n, err := c.cache.StrLen(ctx, args[0])
	if err != nil {
		return "", err
	}
	return formatInt(int64(n)), nil
}

func cmdAppend(ctx context.Context, c *console, args []string) (string, error) {
	if _, err := c.cache.Append(ctx, args[0], args[1]); err != nil {
		return "", err
	}
	n, err := c.cache.StrLen(ctx, args[0])
	if err != nil {
		return "", err
	}
	return formatInt(int64(n)), nil
}

// counter 生成 incr/decr 系列命令，sign 决定方向，withDelta 表示需要读取第二个参数。
func counter(sign int64, withDelta bool) handler {
	return func(ctx context.Context, c *console, args []string) (string, error) {
		delta := int64(1)
		if withDelta {
			d, err := parseInt(args[1])
			if err != nil {
				return "", err
			}
			delta = d
		}
		var (
			n   int64
			err error
		)
		if sign > 0 {
			n, err = c.cache.IncrBy(ctx, args[0], delta)
		} else {
			n, err = c.cache.DecrBy(ctx, args[0], delta)
		}
		if err != nil {
			return "", err
		}
		return formatInt(n), nil
	}
}

func cmdKeys(ctx context.Context, c *console, args []string) (string, error) {
	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}
	keys, err := c.cache.Keys(ctx, pattern)
	if err != nil {
		return "", err
	}
	return formatList(keys), nil
}

func cmdExists(ctx context.Context, c *console, args []string) (string, error) {
	var n int64
	for _, key := range args {
		if c.cache.Exists(ctx, key) {
			n++
		}
	}
	return formatInt(n), nil
}

func cmdRename(ctx context.Context, c *console, args []string) (string, error) {
	if !c.cache.Rename(ctx, args[0], args[1]) {
		return "", errNoSuchKey
	}
	return replyOK, nil
}

func cmdRenameNX(ctx context.Context, c *console, args []string) (string, error) {
	if !c.cache.Exists(ctx, args[0]) {
		return "", errNoSuchKey
	}
	return formatBool(c.cache.RenameNX(ctx, args[0], args[1])), nil
}

func cmdCopy(ctx context.Context, c *console, args []string) (string, error) {
	replace := false
	if len(args) == 3 {
		if !strings.EqualFold(args[2], "REPLACE") {
			return "", errSyntax
		}
		replace = true
	}
	return formatBool(c.cache.Copy(ctx, args[0], args[1], replace)), nil
}

func cmdExpire(ctx context.Context, c *console, args []string) (string, error) {
	seconds, err := parseInt(args[1])
	if err != nil {
		return "", err
	}
	opt, err := expireOption(args, 2)
	if err != nil {
		return "", err
	}
	ok, err := c.cache.Expire(ctx, args[0], time.Duration(seconds)*time.Second, opt)
	if err != nil {
		return "", err
	}
	return formatBool(ok), nil
}

func cmdExpireAt(ctx context.Context, c *console, args []string) (string, error) {
	unix, err := parseInt(args[1])
	if err != nil {
		return "", err
	}
	opt, err := expireOption(args, 2)
	if err != nil {
		return "", err
	}
	ok, err := c.cache.ExpireAt(ctx, args[0], time.Unix(unix, 0), opt)
	if err != nil {
		return "", err
	}
	return formatBool(ok), nil
}

func cmdPersist(ctx context.Context, c *console, args []string) (string, error) {
	return formatBool(c.cache.Persist(ctx, args[0])), nil
}

func cmdExpireTime(ctx context.Context, c *console, args []string) (string, error) {
	return formatInt(c.cache.ExpireTime(ctx, args[0])), nil
}

func cmdTTL(ctx context.Context, c *console, args []string) (string, error) {
	ttl := c.cache.TTL(ctx, args[0])
	if ttl < 0 {
		return formatInt(int64(ttl)), nil
	}
	return strconv.FormatFloat(ttl, 'f', 3, 64), nil
}

func cmdLPush(ctx context.Context, c *console, args []string) (string, error) {
	var n int
	for _, v := range args[1:] {
		var err error
		if n, err = c.cache.LPush(ctx, args[0], xkv.String(v)); err != nil {
			return "", err
		}
	}
	return formatInt(int64(n)), nil
}

func cmdRPop(ctx context.Context, c *console, args []string) (string, error) {
	timeout, err := popTimeout(args, 1)
	if err != nil {
		return "", err
	}
	v, ok, err := c.cache.RPop(ctx, args[0], timeout)
	if err != nil {
		return "", err
	}
	return formatValue(v, ok), nil
}

func cmdLLen(ctx context.Context, c *console, args []string) (string, error) {
	n, err := c.cache.LLen(ctx, args[0])
	if err != nil {
		return "", err
	}
	return formatInt(int64(n)), nil
}

func cmdRPopLPush(ctx context.Context, c *console, args []string) (string, error) {
	timeout, err := popTimeout(args, 2)
	if err != nil {
		return "", err
	}
	v, ok, err := c.cache.RPopLPush(ctx, args[0], args[1], timeout)
	if err != nil {
		return "", err
	}
	return formatValue(v, ok), nil
}

func cmdFlushAll(ctx context.Context, c *console, _ []string) (string, error) {
	c.cache.FlushAll(ctx)
	return replyOK, nil
}

func cmdDBSize(ctx context.Context, c *console, _ []string) (string, error) {
	return formatInt(int64(c.cache.DBSize(ctx))), nil
}

func cmdStats(_ context.Context, c *console, _ []string) (string, error) {
	s := c.cache.Stats()
	lines := []string{
		fmt.Sprintf("keys:        %d", s.Keys),
		fmt.Sprintf("volatile:    %d", s.Volatile),
		fmt.Sprintf("hits:        %d", s.Hits),
		fmt.Sprintf("misses:      %d", s.Misses),
		fmt.Sprintf("expired:     %d", s.Expired),
		fmt.Sprintf("scans:       %d", s.Scans),
		fmt.Sprintf("scan_panics: %d", s.ScanPanics),
	}
	if !s.NextWake.IsZero() {
		lines = append(lines, "next_wake:   "+s.NextWake.Format(time.RFC3339))
	}
	return strings.Join(lines, "\n"), nil
}

func cmdSetLog(_ context.Context, c *console, args []string) (string, error) {
	if len(args) == 0 {
		return c.logger.GetLevel().String(), nil
	}
	level, err := xlog.ParseLevel(args[0])
	if err != nil {
		return "", err
	}
	c.logger.SetLevel(level)
	return replyOK, nil
}

func cmdPing(ctx context.Context, c *console, _ []string) (string, error) {
	return c.cache.Ping(ctx), nil
}

func cmdHelp(_ context.Context, c *console, _ []string) (string, error) {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("可用命令:\n")
	for _, name := range names {
		spec := c.commands[name]
		fmt.Fprintf(&b, "  %-45s %s\n", spec.usage, spec.summary)
	}
	b.WriteString("  quit | exit                                   退出控制台")
	return b.String(), nil
}
