package xlog

import (
	"log/slog"
	"time"
)

// =============================================================================
// 属性 Key 常量
// =============================================================================

const (
	// KeyError 错误字段
	KeyError = "error"

	// KeyStack 堆栈字段
	KeyStack = "stack"

	// KeyDuration 耗时字段
	KeyDuration = "duration"

	// KeyCount 计数字段
	KeyCount = "count"

	// KeyComponent 组件名称字段
	KeyComponent = "component"

	// KeyOperation 操作名称字段
	KeyOperation = "operation"

	// KeyKey 缓存 key 字段
	KeyKey = "key"

	// KeyExpireAt 过期时间字段
	KeyExpireAt = "expire_at"

	// KeyPath 文件路径字段
	KeyPath = "path"
)

// =============================================================================
// 便捷属性构造函数
// =============================================================================

// Err 创建错误属性，err 为 nil 时返回会被 slog 忽略的空属性。
//
//	if err != nil {
//	    logger.Error(ctx, "reload failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Key 创建缓存 key 属性
func Key(key string) slog.Attr {
	return slog.String(KeyKey, key)
}

// ExpireAt 创建过期时间属性
func ExpireAt(t time.Time) slog.Attr {
	return slog.Time(KeyExpireAt, t)
}

// Path 创建文件路径属性
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}
