// app/agentd/internal/position/replay.go
package position

import (
	"context"
	"io"
	"time"

	"github.com/lk2023060901/couriersync/pkg/realtime"
)

// Replay 按固定间隔回放一组预置路径点的位置来源
// 用于没有 GPS 硬件的环境（压测、演示、联调）
type Replay struct {
	points   []realtime.LatLng
	interval time.Duration
	loop     bool

	idx   int
	first bool
}

// NewReplay 创建回放来源
// loop 为 true 时路径点循环播放，否则播完即 io.EOF
func NewReplay(points []realtime.LatLng, interval time.Duration, loop bool) *Replay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Replay{
		points:   points,
		interval: interval,
		loop:     loop,
		first:    true,
	}
}

// Next 返回下一个路径点，首个点立即返回，之后按间隔节流
func (r *Replay) Next(ctx context.Context) (realtime.LocationSample, error) {
	if len(r.points) == 0 {
		return realtime.LocationSample{}, io.EOF
	}

	if !r.first {
		select {
		case <-time.After(r.interval):
		case <-ctx.Done():
			return realtime.LocationSample{}, ctx.Err()
		}
	}
	r.first = false

	if r.idx >= len(r.points) {
		if !r.loop {
			return realtime.LocationSample{}, io.EOF
		}
		r.idx = 0
	}

	p := r.points[r.idx]
	r.idx++

	return realtime.LocationSample{
		Lat:        p.Lat,
		Lng:        p.Lng,
		CapturedAt: time.Now().UTC(),
	}, nil
}
