// Package xmetrics 提供统一的可观测性接口（metrics + tracing）。
//
// # 设计理念
//
// 业务代码只依赖最小化接口 Observer/Span/Attr，具体实现可替换：
// NoopObserver 用于默认与测试，NewOTelObserver 基于 OpenTelemetry。
//
//	obs, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//	    Component: "xkv",
//	    Operation: "setnx",
//	})
//	defer span.End(xmetrics.Result{Err: err})
//
// # 指标命名
//
//   - zencache.operation.total：操作次数（counter）
//   - zencache.operation.duration：操作耗时，单位秒（histogram）
//   - zencache.keys.expired：因过期被删除的 key 数（counter，见 ExpiredRecorder）
//
// 统一属性：component / operation / status。
package xmetrics
