// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xkv: 进程内键值存储，支持字符串、计数器与 FIFO 队列，带 TTL 与后台过期扫描
//
// 设计原则：
//   - 所有操作线程安全，阻塞操作接受 context 取消
//   - 内置可观测性（指标、追踪）
//   - 过期采用惰性检查 + 主动扫描两条路径
package storage
