// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、lumberjack 文件轮转）
//   - 动态级别调整，配置热更新时直接生效
//   - 全局 Logger 便利函数
//   - 缓存领域常用属性（[Key]、[ExpireAt]、[Count] 等）
//
// # 创建 Logger
//
// Builder 遵循 first-error-wins：第一个配置错误在 [Builder.Build] 时返回。
//
//	logger, cleanup, err := xlog.New().
//	    SetLevelString("debug").
//	    SetFormat("json").
//	    SetRotation("/var/log/zencache.log", xlog.WithMaxBackups(3)).
//	    Build()
//
// # 全局 Logger
//
//   - [Default]: 获取全局 Logger（惰性初始化：stderr、Info 级别、text 格式）
//   - [SetDefault]: 替换全局 Logger（nil 会被忽略）
//   - [ResetDefault]: 重置为未初始化状态（仅用于测试）
//   - [Debug]、[Info]、[Warn]、[Error]、[Stack]: 全局便利函数
//
// # 派生 Logger 与级别控制
//
// [Logger.With] 和 [Logger.WithGroup] 返回 [Logger]，底层实现同时满足
// [LoggerWithLevel]，派生 logger 共享父级的级别：
//
//	child := logger.With(xlog.Component("xkv"))
//	if lwl, ok := child.(xlog.LoggerWithLevel); ok {
//	    lwl.SetLevel(xlog.LevelDebug)
//	}
package xlog
