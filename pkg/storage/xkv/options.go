package xkv

import (
	"time"

	"github.com/omeyang/zencache/pkg/observability/xlog"
	"github.com/omeyang/zencache/pkg/observability/xmetrics"
)

const (
	// DefaultWorkerInterval 是 Worker 在没有唤醒信号时的兜底扫描间隔。
	DefaultWorkerInterval = 60 * time.Second

	// DefaultManagerInterval 是 Manager 的兜底检查间隔。
	DefaultManagerInterval = 60 * time.Second

	// DefaultPatternCacheSize 是 Keys 编译后正则的缓存容量。
	DefaultPatternCacheSize = 128
)

// Clock 提供当前时间，测试中可注入假时钟。
type Clock interface {
	Now() time.Time
}

// ClockFunc 将函数适配为 Clock。
type ClockFunc func() time.Time

// Now 实现 Clock。
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option 配置 Cache。
type Option func(*options)

type options struct {
	clock            Clock
	logger           xlog.Logger
	observer         xmetrics.Observer
	maxQueueLen      int
	workerInterval   time.Duration
	managerInterval  time.Duration
	patternCacheSize int
}

func defaultOptions() *options {
	return &options{
		clock:            systemClock{},
		observer:         xmetrics.NoopObserver{},
		workerInterval:   DefaultWorkerInterval,
		managerInterval:  DefaultManagerInterval,
		patternCacheSize: DefaultPatternCacheSize,
	}
}

// WithClock 设置时钟。nil 被忽略。
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger 设置日志记录器，默认使用 xlog.Default()。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置观测器，每个门面操作都会产生一个跨度。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithMaxQueueLen 限制单个队列的长度，0 或负数表示不限制。
func WithMaxQueueLen(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxQueueLen = n
	}
}

// WithScanIntervals 设置 Worker 与 Manager 的兜底间隔。非正数保持默认值。
func WithScanIntervals(worker, manager time.Duration) Option {
	return func(o *options) {
		if worker > 0 {
			o.workerInterval = worker
		}
		if manager > 0 {
			o.managerInterval = manager
		}
	}
}

// WithPatternCacheSize 设置 Keys 正则缓存容量，非正数保持默认值。
func WithPatternCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.patternCacheSize = n
		}
	}
}
