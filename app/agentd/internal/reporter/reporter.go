// app/agentd/internal/reporter/reporter.go
package reporter

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/lk2023060901/couriersync/app/agentd/internal/position"
	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/realtime"
)

// Reporter 把位置来源的样本经实时会话上报，实现 app.Server
// 会话断线期间的样本被丢弃，重连后从最新样本继续
type Reporter struct {
	session *realtime.Session
	source  position.Source
	logger  logger.Logger

	// Parcels 启动时要跟踪的包裹（配送单）
	parcels []string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New 创建上报器
func New(session *realtime.Session, source position.Source, parcels []string, l logger.Logger) *Reporter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reporter{
		session: session,
		source:  source,
		logger:  l.Named("reporter"),
		parcels: parcels,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start 启动上报循环
func (r *Reporter) Start() error {
	for _, id := range r.parcels {
		r.session.JoinParcelRoom(id)
	}

	go r.run()
	return nil
}

// Stop 停止上报
func (r *Reporter) Stop() error {
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		r.logger.Warn("reporter stop timed out")
	}
	return nil
}

func (r *Reporter) run() {
	defer close(r.done)

	for {
		sample, err := r.source.Next(r.ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Info("position source exhausted")
				return
			}
			if r.ctx.Err() != nil {
				return
			}
			r.logger.Warn("position source error", "error", err)
			continue
		}

		// 未连接时 Emit 静默丢弃，符合位置样本尽力而为的语义
		r.session.UpdateAgentLocation(realtime.LatLng{Lat: sample.Lat, Lng: sample.Lng})
	}
}
