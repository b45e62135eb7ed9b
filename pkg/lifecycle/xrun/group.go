package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/zencache/pkg/observability/xlog"
)

// Group 基于 errgroup + context 管理多个长期运行的循环。
//
// 任一服务返回错误或父 context 被取消时，所有服务都会收到取消信号。
// Go、GoWithName、Cancel 可并发调用，Wait 只应调用一次。
//
//	g, ctx := xrun.NewGroup(ctx, xrun.WithName("ttl-scanner"))
//	g.GoWithName("worker", runWorker)
//	g.GoWithName("manager", runManager)
//	err := g.Wait()
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建 Group，返回的 context 在任一服务出错时被取消。
// nil ctx 按 context.Background() 处理。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)

	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     options,
	}, egCtx
}

// Go 启动一个 goroutine 执行 fn。fn 应监听 ctx.Done() 以响应取消。
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		return fn(g.ctx)
	})
}

// GoWithName 与 Go 相同，但会记录服务的启停日志。
func (g *Group) GoWithName(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		attrs := []slog.Attr{slog.String("group", g.opts.name), slog.String("service", name)}
		g.opts.logger.Debug(g.ctx, "service starting", attrs...)

		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.opts.logger.Warn(g.ctx, "service exited with error", append(attrs, xlog.Err(err))...)
		} else {
			g.opts.logger.Debug(g.ctx, "service stopped", attrs...)
		}
		return err
	})
}

// Wait 等待所有服务退出，返回第一个非 nil 错误。
//
// 来自 Group 取消的 context.Canceled 会被过滤：有显式 cause（如 *SignalError）
// 时返回 cause，否则返回 nil。服务内部产生的 context.Canceled 原样返回。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()
	if errors.Is(err, context.Canceled) {
		if g.causeCtx.Err() != nil {
			return g.explicitCause()
		}
		return err
	}
	if err == nil && g.causeCtx.Err() != nil {
		return g.explicitCause()
	}
	return err
}

func (g *Group) explicitCause() error {
	if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// Cancel 主动取消所有服务，cause 会由 Wait 返回。
// cause 不应包装 context.Canceled，否则会被当作普通取消过滤掉。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的 context。
func (g *Group) Context() context.Context {
	return g.ctx
}

// ----------------------------------------------------------------------------
// Service
// ----------------------------------------------------------------------------

// Service 是可由 Run 管理的长期运行服务。
type Service interface {
	// Run 阻塞直到 ctx 被取消或发生错误。
	Run(ctx context.Context) error
}

// ServiceFunc 将函数适配为 Service。
type ServiceFunc func(ctx context.Context) error

// Run 实现 Service。
func (f ServiceFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Named 为 Service 附加日志名称。
func Named(name string, svc Service) Service {
	return namedService{name: name, Service: svc}
}

type namedService struct {
	name string
	Service
}

// ----------------------------------------------------------------------------
// 信号
// ----------------------------------------------------------------------------

// DefaultSignals 返回默认监听的信号：SIGHUP、SIGINT、SIGTERM、SIGQUIT。
// 每次调用返回新切片。
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// testSigChanKey 让测试通过 context 注入信号，而不必向进程发送真实信号。
type testSigChanKey struct{}

func testSigChan(ctx context.Context) <-chan os.Signal {
	c, _ := ctx.Value(testSigChanKey{}).(<-chan os.Signal)
	return c
}

func withTestSigChan(ctx context.Context, c <-chan os.Signal) context.Context {
	return context.WithValue(ctx, testSigChanKey{}, c)
}

// Run 运行全部服务并监听系统信号，收到信号时返回 *SignalError。
//
// 任一服务出错时其余服务被取消，Run 返回该错误。
// 可通过 WithSignals 定制信号，或 WithoutSignalHandler 关闭信号处理。
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithName("zencache")},
//	    xrun.Named("scanner", cache),
//	    xrun.Named("config-watch", watcher),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常退出
//	}
func Run(ctx context.Context, opts []Option, services ...Service) error {
	g, _ := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		g.Go(func(ctx context.Context) error {
			testc := testSigChan(ctx)
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, signals...)
			defer signal.Stop(sigCh)

			var sig os.Signal
			select {
			case sig = <-testc:
			case sig = <-sigCh:
			case <-ctx.Done():
				return ctx.Err()
			}

			g.opts.logger.Info(ctx, "received signal",
				slog.String("group", g.opts.name),
				slog.String("signal", sig.String()),
			)
			g.cancel(&SignalError{Signal: sig})
			return nil
		})
	}

	// 全部服务正常结束时取消 Group，让信号监听随之退出
	var remaining atomic.Int64
	remaining.Store(int64(len(services)))
	track := func(fn func(ctx context.Context) error) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			defer func() {
				if remaining.Add(-1) == 0 {
					g.cancel(nil)
				}
			}()
			return fn(ctx)
		}
	}
	if len(services) == 0 {
		g.cancel(nil)
	}

	for _, svc := range services {
		switch s := svc.(type) {
		case nil:
			g.Go(track(func(context.Context) error { return ErrNilService }))
		case namedService:
			if s.Service == nil {
				g.Go(track(func(context.Context) error { return ErrNilService }))
				continue
			}
			g.GoWithName(s.name, track(s.Service.Run))
		default:
			g.Go(track(s.Run))
		}
	}
	return g.Wait()
}
