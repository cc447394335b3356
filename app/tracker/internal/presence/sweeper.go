// app/tracker/internal/presence/sweeper.go
package presence

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lk2023060901/couriersync/pkg/logger"
)

// Sweeper 按 cron 计划清理过期在线状态，实现 app.Server
type Sweeper struct {
	store  *Store
	cron   *cron.Cron
	logger logger.Logger
}

// NewSweeper 创建清理任务
func NewSweeper(store *Store, l logger.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		cron:   cron.New(),
		logger: l.Named("presence.sweeper"),
	}
}

// Start 启动定时清理
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.store.cfg.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.store.Sweep(ctx); err != nil {
			s.logger.Error("presence sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("presence sweeper started", "spec", s.store.cfg.SweepSpec)
	return nil
}

// Stop 停止定时清理，等待进行中的任务完成
func (s *Sweeper) Stop() error {
	ctx := s.cron.Stop()
	<-ctx.Done()
	return nil
}
