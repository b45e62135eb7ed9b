package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/zencache/pkg/config/xconf"
	"github.com/omeyang/zencache/pkg/lifecycle/xrun"
	"github.com/omeyang/zencache/pkg/observability/xlog"
	"github.com/omeyang/zencache/pkg/observability/xmetrics"
	"github.com/omeyang/zencache/pkg/storage/xkv"
)

// errConsoleClosed 表示控制台退出，用于结束整个服务组。
var errConsoleClosed = errors.New("console closed")

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createServeCommand(),
		createREPLCommand(),
		createConfigCommand(),
	}
}

// createServeCommand 创建 serve 子命令。
func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "启动缓存与过期扫描器，阻塞直到收到退出信号",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdServe(ctx, cmd, nil, nil)
		},
	}
}

// createREPLCommand 创建 repl 子命令。
func createREPLCommand() *cli.Command {
	return &cli.Command{
		Name:    "repl",
		Aliases: []string{"i", "interactive"},
		Usage:   "启动缓存并进入交互控制台",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdServe(ctx, cmd, os.Stdin, cmd.Root().Writer)
		},
	}
}

// createConfigCommand 创建 config 子命令。
func createConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "打印生效配置",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "输出格式 (yaml/json)",
				Value:   string(xconf.FormatYAML),
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config"), cmd.String("log-level"))
			if err != nil {
				return err
			}
			data, err := cfg.Marshal(xconf.Format(cmd.String("format")))
			if err != nil {
				return usagef("%v", err)
			}
			_, err = cmd.Root().Writer.Write(data)
			return err
		},
	}
}

// loadConfig 加载配置文件，path 为空时使用默认配置。
// level 非空时覆盖日志级别。
func loadConfig(path, level string) (*xconf.Config, error) {
	cfg := xconf.Default()
	if path != "" {
		loaded, err := xconf.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if level != "" {
		if _, err := xlog.ParseLevel(level); err != nil {
			return nil, usagef("%v", err)
		}
		cfg.Log.Level = level
	}
	return cfg, nil
}

// =============================================================================
// serve / repl
// =============================================================================

// server 持有一次运行所需的全部组件。
type server struct {
	path     string
	cfg      *xconf.Config
	logger   xlog.LoggerWithLevel
	cache    *xkv.Cache
	levelSet bool
}

// newServer 按配置构建日志与缓存。返回的 cleanup 负责刷新并关闭日志输出。
func newServer(path, level string) (*server, func() error, error) {
	cfg, err := loadConfig(path, level)
	if err != nil {
		return nil, nil, err
	}

	logger, cleanup, err := cfg.Log.Builder().
		SetAttrs(slog.String("instance", uuid.NewString())).
		Build()
	if err != nil {
		return nil, nil, err
	}

	observer, err := xmetrics.NewOTelObserver()
	if err != nil {
		return nil, nil, errors.Join(err, cleanup())
	}

	opts := append(cfg.CacheOptions(),
		xkv.WithLogger(logger),
		xkv.WithObserver(observer),
	)
	cache, err := xkv.New(opts...)
	if err != nil {
		return nil, nil, errors.Join(err, cleanup())
	}

	return &server{
		path:     path,
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		levelSet: level != "",
	}, cleanup, nil
}

// services 返回需要并发运行的服务。in 非 nil 时附带交互控制台。
func (s *server) services(in io.Reader, out io.Writer) ([]xrun.Service, error) {
	svcs := []xrun.Service{
		xrun.Named("ttl-scanner", xrun.ServiceFunc(s.cache.Run)),
	}

	if s.path != "" {
		w, err := xconf.Watch(s.path, s.applyConfig)
		if err != nil {
			return nil, err
		}
		svcs = append(svcs, xrun.Named("config-watcher", xrun.ServiceFunc(w.Run)))
	}

	if s.cfg.StatsReport != "" {
		reporter, err := newStatsReporter(s.cfg.StatsReport, s.cache, s.logger)
		if err != nil {
			return nil, err
		}
		svcs = append(svcs, xrun.Named("stats-reporter", reporter))
	}

	if in != nil {
		con := newConsole(s.cache, s.logger)
		svcs = append(svcs, xrun.Named("console", xrun.ServiceFunc(func(ctx context.Context) error {
			if err := runREPL(ctx, in, out, con); err != nil {
				return err
			}
			return errConsoleClosed
		})))
	}
	return svcs, nil
}

// applyConfig 应用热更新后的配置。
//
// 只有扫描间隔与日志级别支持热更新，其他字段的修改需要重启。
// 命令行指定了 --log-level 时忽略配置文件中的级别。
func (s *server) applyConfig(cfg *xconf.Config, err error) {
	ctx := context.Background()
	if err != nil {
		s.logger.Warn(ctx, "config reload failed, keeping current settings", xlog.Path(s.path), xlog.Err(err))
		return
	}

	if err := s.cache.SetScanIntervals(cfg.WorkerEvery(), cfg.ManagerEvery()); err != nil {
		s.logger.Warn(ctx, "invalid scan intervals", xlog.Err(err))
	}
	if !s.levelSet {
		if level, err := xlog.ParseLevel(cfg.Log.Level); err == nil {
			s.logger.SetLevel(level)
		}
	}
	if cfg.QueueMaxLen != s.cfg.QueueMaxLen || cfg.StatsReport != s.cfg.StatsReport {
		s.logger.Warn(ctx, "queue-max-len and stats-report changes take effect after restart")
	}
	s.logger.Info(ctx, "config reloaded", xlog.Path(s.path),
		slog.Duration("worker_interval", cfg.WorkerEvery()),
		slog.Duration("manager_interval", cfg.ManagerEvery()),
		slog.String("log_level", s.logger.GetLevel().String()),
	)
}

// cmdServe 启动服务组并阻塞直到退出。
func cmdServe(ctx context.Context, cmd *cli.Command, in io.Reader, out io.Writer) error {
	s, cleanup, err := newServer(cmd.String("config"), cmd.String("log-level"))
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	svcs, err := s.services(in, out)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "zencache starting", slog.String("version", Version))
	err = xrun.Run(ctx, []xrun.Option{xrun.WithName("zencache"), xrun.WithLogger(s.logger)}, svcs...)
	if errors.Is(err, errConsoleClosed) {
		err = nil
	}
	s.logger.Info(ctx, "zencache stopped", slog.Any("stats", s.cache.Stats()))
	if err != nil {
		return fmt.Errorf("zencache: %w", err)
	}
	return nil
}
