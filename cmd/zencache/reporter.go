package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/zencache/pkg/observability/xlog"
	"github.com/omeyang/zencache/pkg/storage/xkv"
)

// statsReporter 按 cron 表达式周期性输出缓存统计。
type statsReporter struct {
	cron   *cron.Cron
	cache  *xkv.Cache
	logger xlog.Logger
}

// newStatsReporter 创建统计输出器，spec 使用标准 5 段 cron 语法或 @every 描述符。
func newStatsReporter(spec string, cache *xkv.Cache, logger xlog.Logger) (*statsReporter, error) {
	r := &statsReporter{cache: cache, logger: logger}
	r.cron = cron.New(
		cron.WithLogger(cronLogger{logger: logger}),
		cron.WithChain(cron.Recover(cronLogger{logger: logger}), cron.SkipIfStillRunning(cronLogger{logger: logger})),
	)
	if _, err := r.cron.AddFunc(spec, r.report); err != nil {
		return nil, fmt.Errorf("stats-report %q: %w", spec, err)
	}
	return r, nil
}

// Run 启动调度，ctx 结束后等待正在执行的任务完成。
func (r *statsReporter) Run(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
	return nil
}

func (r *statsReporter) report() {
	r.logger.Info(context.Background(), "cache stats", slog.Any("stats", r.cache.Stats()))
}

// cronLogger 将 cron.Logger 适配到 xlog。cron 的常规调度日志降为 Debug。
type cronLogger struct {
	logger xlog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), "cron: "+msg, kvAttrs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	attrs := append(kvAttrs(keysAndValues), xlog.Err(err))
	l.logger.Error(context.Background(), "cron: "+msg, attrs...)
}

// kvAttrs 将交替的键值对转换为 slog.Attr，落单的值以 "!BADKEY" 记录。
func kvAttrs(kv []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok || i+1 >= len(kv) {
			attrs = append(attrs, slog.Any("!BADKEY", kv[i]))
			i--
			continue
		}
		attrs = append(attrs, slog.Any(key, kv[i+1]))
	}
	return attrs
}
