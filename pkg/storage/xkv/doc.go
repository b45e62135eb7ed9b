// Package xkv 提供进程内的类 Redis 键值缓存。
//
// # 概述
//
// Cache 由三部分组成：
//   - KeyStore：key 到条目的映射，条目是标量（String/Int）或 FIFO 队列
//   - TtlTable：key 到绝对过期时间的旁路表，只对存在的 key 有记录
//   - 过期扫描器：Worker 循环负责删除到期 key，Manager 循环负责在最早到期时间唤醒 Worker
//
// 所有非阻塞操作在同一把锁内完成，条件写入（SetNX、MSetNX、RenameNX、Copy 等）
// 的"检查再修改"不会被其他调用穿插。
//
// # 快速开始
//
//	cache, err := xkv.New(xkv.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	go cache.Run(ctx) // 启动过期扫描器
//
//	_ = cache.Set(ctx, "greeting", xkv.String("hello"))
//	_, _ = cache.Expire(ctx, "greeting", 30*time.Second, xkv.ExpireAlways)
//	v, ok := cache.Get(ctx, "greeting")
//
// # 值模型
//
// Value 是带标签的变体，零值 Nil 表示缺失。读取队列形态的 key 得到 KindList 快照。
// 不存在的 key 通过哨兵返回（Nil、false、-1、-2），类型不符与参数非法才返回错误，
// 错误都可以用 errors.Is 与包级哨兵比较。
//
// # 过期
//
// 过期 key 在两条路径上被删除：任何操作访问到它时（惰性过期），
// 以及 Worker 扫描时。因此即使扫描器尚未运行，过期 key 也不可见。
//
// Set、MSet、GetSet 会清除 TTL；Incr、Append、LPush 保留 TTL；
// Rename 丢弃源 key 的 TTL，Copy 从不复制 TTL。
//
// # 队列
//
// LPush 追加到尾部，RPop 取出最旧的元素。RPop 与 RPopLPush 在队列为空时阻塞，
// 直到有新元素、超时或 ctx 结束。队列变空后 key 仍然存在。
package xkv
