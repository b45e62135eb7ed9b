// zencache 是进程内键值缓存服务的命令行入口。
//
// 用法:
//
//	zencache [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config     配置文件路径（.yaml/.yml/.json，缺省使用内置默认值）
//	-l, --log-level  覆盖配置中的日志级别 (debug/info/warn/error)
//
// 命令:
//
//	serve          启动缓存与过期扫描器，阻塞直到收到退出信号
//	repl           启动缓存并进入交互控制台
//	config         打印生效配置
//	help           显示帮助信息
//
// 指定 --config 时会监视该文件，扫描间隔与日志级别的修改无需重启即可生效。
//
// 退出码:
//
//	0: 正常退出（包括收到 SIGINT/SIGTERM 后的优雅停止）
//	1: 运行失败
//	2: 参数错误（未知命令、未知 flag、配置非法等）
//
// 示例:
//
//	zencache repl                              # 使用默认配置进入控制台
//	zencache -c /etc/zencache.yaml serve       # 按配置文件启动并监视变更
//	zencache -c zencache.yaml config -f json   # 以 JSON 打印生效配置
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/zencache/pkg/config/xconf"
	"github.com/omeyang/zencache/pkg/lifecycle/xrun"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "zencache",
		Usage:   "进程内键值缓存服务",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（yaml/json）",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "覆盖配置中的日志级别",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
		Description: `zencache 在进程内提供字符串、计数器与 FIFO 队列三类数据，
支持按 key 设置过期时间，过期 key 由后台扫描器主动清理。

控制台命令（repl 模式下输入 help 查看完整列表）:
  get/set/setnx/getset/getdel/del       单 key 读写
  mget/mset/msetnx                      多 key 读写
  strlen/append/incr/decr/incrby/decrby 字符串与计数
  keys/exists/rename/renamenx/copy      键空间
  expire/expireat/persist/expiretime/ttl 过期时间
  lpush/rpop/llen/rpoplpush             队列（rpop 支持阻塞等待）
  flushall/dbsize/stats/setlog/ping     管理`,
	}
}

func run(args []string) int {
	app := createApp()

	if err := app.Run(context.Background(), args); err != nil {
		return exitCode(err)
	}
	return 0
}

// exitCode 将错误映射为退出码，同时输出错误信息。
func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	// 信号触发的停止是正常退出
	if errors.Is(err, xrun.ErrSignal) {
		return 0
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if errors.Is(err, xconf.ErrInvalidConfig) || errors.Is(err, xconf.ErrUnsupportedFormat) {
		fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
		return 2
	}
	if isCLIUsageError(err) {
		// flag 解析器已向 stderr 输出详情
		return 2
	}
	fmt.Fprintf(os.Stderr, "错误: %v\n", err)
	return 1
}

// exitError 表示命令已完成输出，只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示参数错误。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// isCLIUsageError 识别 urfave/cli 产生的参数错误。
func isCLIUsageError(err error) bool {
	if _, ok := err.(cli.ExitCoder); ok {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"flag provided but not defined",
		"No help topic for",
		"invalid value",
		"Required flag",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
