// app/tracker/internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ConnectionsActive 当前在线连接数
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tracker",
			Name:      "connections_active",
			Help:      "Number of active realtime connections.",
		},
	)

	// EventsTotal 按事件类型统计的入站事件数
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "events_total",
			Help:      "Total number of inbound realtime events.",
		},
		[]string{"event"},
	)

	// BroadcastsTotal 出站广播消息数
	BroadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "broadcasts_total",
			Help:      "Total number of messages fanned out to rooms.",
		},
		[]string{"room_kind"},
	)

	// ForcedDisconnectsTotal 服务端强制断开次数
	ForcedDisconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "forced_disconnects_total",
			Help:      "Total number of server-initiated disconnects.",
		},
	)
)

// Init 注册指标到指定的注册器
func Init(registerer prometheus.Registerer) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(
		ConnectionsActive,
		EventsTotal,
		BroadcastsTotal,
		ForcedDisconnectsTotal,
	)
}
