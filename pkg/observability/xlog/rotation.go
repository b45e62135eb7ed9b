package xlog

import (
	"fmt"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// =============================================================================
// 文件轮转
// =============================================================================

const (
	// DefaultMaxSizeMB 默认单个日志文件最大大小（MB）
	DefaultMaxSizeMB = 100

	// DefaultMaxBackups 默认保留的备份文件数量
	DefaultMaxBackups = 7

	// DefaultMaxAgeDays 默认保留备份的天数
	DefaultMaxAgeDays = 30
)

// RotationConfig 轮转配置
type RotationConfig struct {
	// MaxSizeMB 单个文件最大大小（MB），必须 > 0
	MaxSizeMB int
	// MaxBackups 保留的备份数量，0 表示不按数量清理
	MaxBackups int
	// MaxAgeDays 保留备份的天数，0 表示不按天数清理
	MaxAgeDays int
	// Compress 是否 gzip 压缩备份
	Compress bool
	// LocalTime 备份文件名是否使用本地时间
	LocalTime bool
}

// RotationOption 配置文件轮转
type RotationOption func(*RotationConfig)

// WithMaxSize 设置单个日志文件最大大小（MB）
func WithMaxSize(mb int) RotationOption {
	return func(c *RotationConfig) { c.MaxSizeMB = mb }
}

// WithMaxBackups 设置保留的备份文件数量
func WithMaxBackups(n int) RotationOption {
	return func(c *RotationConfig) { c.MaxBackups = n }
}

// WithMaxAge 设置保留备份的天数
func WithMaxAge(days int) RotationOption {
	return func(c *RotationConfig) { c.MaxAgeDays = days }
}

// WithCompress 设置是否压缩备份文件
func WithCompress(compress bool) RotationOption {
	return func(c *RotationConfig) { c.Compress = compress }
}

// WithLocalTime 设置备份文件名是否使用本地时间
func WithLocalTime(local bool) RotationOption {
	return func(c *RotationConfig) { c.LocalTime = local }
}

// newRotator 创建 lumberjack 轮转写入器。文件在首次写入时才打开。
func newRotator(filename string, opts ...RotationOption) (*lumberjack.Logger, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	cfg := RotationConfig{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("%w: max size %d MB", ErrInvalidRotation, cfg.MaxSizeMB)
	}
	if cfg.MaxBackups < 0 || cfg.MaxAgeDays < 0 {
		return nil, fmt.Errorf("%w: negative retention", ErrInvalidRotation)
	}

	return &lumberjack.Logger{
		Filename:   filepath.Clean(filename),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  cfg.LocalTime,
	}, nil
}
