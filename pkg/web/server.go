// pkg/web/server.go
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/web/middleware"
)

// Server Web 服务核心结构，实现 app.Server
type Server struct {
	engine *gin.Engine
	config *Config
	logger logger.Logger
	server *http.Server
}

// NewServer 创建 Web 服务
func NewServer(cfg *Config, l logger.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	if l == nil {
		l = logger.Default()
	}

	gin.SetMode(cfg.Mode)

	engine := gin.New()
	engine.Use(middleware.Logger(l))
	engine.Use(middleware.Recovery(l))

	return &Server{
		engine: engine,
		config: cfg,
		logger: l.Named("web.server"),
	}
}

// Router 返回 Gin 引擎，用于注册路由
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler 返回 http.Handler 接口
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start 启动监听，立即返回
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:           s.config.Addr,
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		s.logger.Info("starting http server", "addr", s.config.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server startup failed", "error", err)
		}
	}()

	return nil
}

// Stop 立即停止服务
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// GracefulStop 优雅关机，5 秒超时
func (s *Server) GracefulStop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server exited")
	return nil
}
