// app/agentd/internal/position/source.go
package position

import (
	"context"

	"github.com/lk2023060901/couriersync/pkg/realtime"
)

// Source 位置来源
// Next 阻塞到下一个位置样本可用，来源耗尽时返回 io.EOF
type Source interface {
	Next(ctx context.Context) (realtime.LocationSample, error)
}
