// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/couriersync/pkg/logger"
)

var (
	ErrAppAlreadyRunning = errors.New("application is already running")
)

// Application 框架级应用接口
type Application interface {
	Run() error
	Shutdown() error
	AppLogger() logger.Logger
}

// Server 服务接口（如 HTTP 网关、后台任务）
type Server interface {
	Start() error
	Stop() error
}

// GracefulServer 支持优雅停止的服务器
type GracefulServer interface {
	Server
	GracefulStop() error
}

// Closer 资源清理接口（如 Redis、DB 连接池）
type Closer interface {
	Close() error
}

// BaseApp 提供了 Application 接口的基础实现
type BaseApp struct {
	opts    Options
	logger  logger.Logger
	servers []Server
	closers []Closer

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex

	started atomic.Bool
	closed  atomic.Bool
}

// NewBaseApp 创建一个新的 BaseApp 实例
func NewBaseApp(opts ...Option) *BaseApp {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &BaseApp{
		opts:   o,
		logger: o.Logger.Named(o.Name),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AppLogger 获取应用主日志对象
func (a *BaseApp) AppLogger() logger.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

// SetAppLogger 替换应用主日志对象
func (a *BaseApp) SetAppLogger(l logger.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = l
}

// Run 启动应用程序并阻塞，直到收到退出信号或 Shutdown 被调用
func (a *BaseApp) Run() error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}

	info := GetInfo()
	fmt.Println(info.String())

	a.logger.Info("application starting",
		"name", info.AppName,
		"version", info.Version,
		"commit", info.GitCommit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
		"id", a.opts.ID,
	)

	for _, srv := range a.servers {
		if err := srv.Start(); err != nil {
			a.logger.Error("failed to start server", "error", err)
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		a.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-a.ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}

	return a.Shutdown()
}

// Shutdown 停止应用程序并清理资源
func (a *BaseApp) Shutdown() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancel()
	a.logger.Info("application shutting down")

	// 并行停止所有服务器，受 StopTimeout 约束
	var g errgroup.Group
	for _, srv := range a.servers {
		s := srv
		g.Go(func() error {
			var err error
			if gs, ok := s.(GracefulServer); ok {
				err = gs.GracefulStop()
			} else {
				err = s.Stop()
			}
			if err != nil {
				a.logger.Error("failed to stop server", "error", err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("all servers stopped")
	case <-time.After(a.opts.StopTimeout):
		a.logger.Warn("shutdown timeout, forcing exit")
	}

	// 逆序关闭所有 Closer 组件（LIFO）
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", "error", err)
		}
	}

	_ = a.logger.Sync()

	a.logger.Info("application exited")
	return nil
}

// AppendServer 添加服务器
func (a *BaseApp) AppendServer(srv ...Server) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servers = append(a.servers, srv...)
}

// AppendCloser 添加资源清理组件
func (a *BaseApp) AppendCloser(closer ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer...)
}
