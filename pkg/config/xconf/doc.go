// Package xconf 加载 zencache 的配置，基于 koanf 实现。
//
// # 格式
//
//   - YAML（推荐）：.yaml, .yml
//   - JSON：.json
//
// 配置文件只需写出要覆盖的字段，缺省字段保留 [Default] 的值：
//
//	ttl-scanner-worker-interval: 60
//	ttl-scanner-manager-interval: 60
//	queue-max-len: 0
//	pattern-cache-size: 128
//	stats-report: "@every 1m"
//	log:
//	  level: info
//	  format: text
//	  file: ""
//
// # 热重载
//
// [Watch] 监视配置文件所在目录（编辑器保存时常先删除再创建），
// 防抖后重新加载并通过回调交付新的 *Config 或错误。Watcher 实现 Run(ctx)，
// 可以直接交给 xrun 管理生命周期。
package xconf
