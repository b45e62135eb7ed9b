package xconf

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/zencache/pkg/observability/xlog"
	"github.com/omeyang/zencache/pkg/storage/xkv"
)

// Config 是 zencache 的完整配置。
type Config struct {
	// WorkerInterval 过期扫描 Worker 的兜底间隔（秒）。
	WorkerInterval int `koanf:"ttl-scanner-worker-interval"`
	// ManagerInterval 过期扫描 Manager 的兜底间隔（秒）。
	ManagerInterval int `koanf:"ttl-scanner-manager-interval"`
	// QueueMaxLen 单个队列的最大长度，0 表示不限制。
	QueueMaxLen int `koanf:"queue-max-len"`
	// PatternCacheSize Keys 正则缓存容量。
	PatternCacheSize int `koanf:"pattern-cache-size"`
	// StatsReport 周期性输出统计信息的 cron 表达式，空串表示关闭。
	StatsReport string `koanf:"stats-report"`
	// Log 日志配置。
	Log LogConfig `koanf:"log"`
}

// LogConfig 是日志配置。
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max-size-mb"`
	MaxBackups int    `koanf:"max-backups"`
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		WorkerInterval:   int(xkv.DefaultWorkerInterval / time.Second),
		ManagerInterval:  int(xkv.DefaultManagerInterval / time.Second),
		PatternCacheSize: xkv.DefaultPatternCacheSize,
		StatsReport:      "@every 1m",
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  xlog.DefaultMaxSizeMB,
			MaxBackups: xlog.DefaultMaxBackups,
		},
	}
}

// Validate 检查配置值，返回包装了 ErrInvalidConfig 的错误（可能合并多个问题）。
func (c *Config) Validate() error {
	var errs []error
	if c.WorkerInterval <= 0 {
		errs = append(errs, fmt.Errorf("ttl-scanner-worker-interval must be positive, got %d", c.WorkerInterval))
	}
	if c.ManagerInterval <= 0 {
		errs = append(errs, fmt.Errorf("ttl-scanner-manager-interval must be positive, got %d", c.ManagerInterval))
	}
	if c.QueueMaxLen < 0 {
		errs = append(errs, fmt.Errorf("queue-max-len must not be negative, got %d", c.QueueMaxLen))
	}
	if c.PatternCacheSize < 0 {
		errs = append(errs, fmt.Errorf("pattern-cache-size must not be negative, got %d", c.PatternCacheSize))
	}
	if c.StatsReport != "" {
		if _, err := cron.ParseStandard(c.StatsReport); err != nil {
			errs = append(errs, fmt.Errorf("stats-report %q: %w", c.StatsReport, err))
		}
	}
	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.Log.Builder().Build(); err != nil && !errors.Is(err, xlog.ErrUnknownLevel) {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// WorkerEvery 返回 Worker 间隔。
func (c *Config) WorkerEvery() time.Duration {
	return time.Duration(c.WorkerInterval) * time.Second
}

// ManagerEvery 返回 Manager 间隔。
func (c *Config) ManagerEvery() time.Duration {
	return time.Duration(c.ManagerInterval) * time.Second
}

// CacheOptions 将配置转换为 xkv 选项。
func (c *Config) CacheOptions() []xkv.Option {
	return []xkv.Option{
		xkv.WithScanIntervals(c.WorkerEvery(), c.ManagerEvery()),
		xkv.WithMaxQueueLen(c.QueueMaxLen),
		xkv.WithPatternCacheSize(c.PatternCacheSize),
	}
}

// Builder 返回按日志配置预设好的 xlog.Builder，调用方可以继续追加设置。
func (l LogConfig) Builder() *xlog.Builder {
	return xlog.New().
		SetLevelString(l.Level).
		SetFormat(l.Format).
		SetRotation(l.File,
			xlog.WithMaxSize(l.MaxSizeMB),
			xlog.WithMaxBackups(l.MaxBackups),
		)
}
