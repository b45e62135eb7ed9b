// Package xrun 提供基于 errgroup + context 的进程生命周期管理。
//
// # 概述
//
// Group 把多个长期运行的循环（过期扫描的 Worker/Manager、配置监听、
// 定时统计等）绑定在同一个 context 上：任一循环出错或收到终止信号，
// 其余循环都会被取消并等待退出。
//
// Run 在 Group 之上增加信号处理，收到 SIGHUP/SIGINT/SIGTERM/SIGQUIT 时
// 以 *SignalError 作为退出原因：
//
//	err := xrun.Run(ctx, nil, xrun.Named("scanner", cache))
//	var sigErr *xrun.SignalError
//	if errors.As(err, &sigErr) {
//	    log.Printf("received signal: %v", sigErr.Signal)
//	}
//
// # 错误处理
//
// Wait 只返回第一个错误。Group 自身取消导致的 context.Canceled 会被过滤，
// 显式的取消原因（Cancel(cause) 或信号）会被保留；服务内部产生的
// context.Canceled 不会被过滤。
//
// [errgroup]: https://pkg.go.dev/golang.org/x/sync/errgroup
package xrun
