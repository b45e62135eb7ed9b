package xkv

import "errors"

// =============================================================================
// 类型错误
// =============================================================================

var (
	// ErrWrongType 表示对 key 的操作与其存储形态不符。
	// 例如对队列执行字符串操作，或对标量执行 LPush/RPop。
	ErrWrongType = errors.New("xkv: operation against a key holding the wrong kind of value")

	// ErrNotInteger 表示值不是合法的十进制 int64，无法执行自增/自减。
	// 原值保持不变。
	ErrNotInteger = errors.New("xkv: value is not an integer")

	// ErrInvalidValue 表示写入的值非法（Nil 或队列快照不能作为元素写入）。
	ErrInvalidValue = errors.New("xkv: invalid value")
)

// =============================================================================
// 参数错误
// =============================================================================

var (
	// ErrInvalidPattern 表示 Keys 的匹配模式不是合法的正则表达式。
	ErrInvalidPattern = errors.New("xkv: invalid key pattern")

	// ErrInvalidExpireOption 表示 ExpireAt 收到未知的条件选项。
	ErrInvalidExpireOption = errors.New("xkv: invalid expire option")

	// ErrInvalidInterval 表示扫描间隔不是正数。
	ErrInvalidInterval = errors.New("xkv: scan interval must be positive")
)

// =============================================================================
// 队列与生命周期错误
// =============================================================================

var (
	// ErrQueueFull 表示有界队列已满，LPush 被拒绝。
	ErrQueueFull = errors.New("xkv: queue is full")

	// ErrAlreadyRunning 表示过期扫描器已经在运行。
	// 每个 Cache 只能调用一次 Run。
	ErrAlreadyRunning = errors.New("xkv: expiry scanner already running")
)
