// app/tracker/internal/firehose/firehose.go
package firehose

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/mq/kafka"
	"github.com/lk2023060901/couriersync/pkg/realtime"
)

// 事件类型
const (
	KindAgentLocation = "agent_location"
	KindParcelStatus  = "parcel_status"
)

// Record 写入 Kafka 的事件记录
type Record struct {
	Kind      string          `json:"kind"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher 把实时事件旁路写入 Kafka，供下游分析消费
// 发布失败只记日志，不影响广播主链路
type Publisher struct {
	producer *kafka.Producer
	logger   logger.Logger
}

// NewPublisher 创建事件发布器
func NewPublisher(producer *kafka.Producer, l logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   l.Named("firehose"),
	}
}

// PublishAgentLocation 发布配送员位置事件
func (p *Publisher) PublishAgentLocation(ctx context.Context, agentID string, b realtime.AgentLocationBroadcast) {
	p.publish(ctx, KindAgentLocation, agentID, b)
}

// PublishParcelStatus 发布包裹状态事件
func (p *Publisher) PublishParcelStatus(ctx context.Context, actorID string, payload realtime.ParcelStatusPayload) {
	p.publish(ctx, KindParcelStatus, actorID, payload)
}

func (p *Publisher) publish(ctx context.Context, kind, userID string, payload any) {
	if p == nil || p.producer == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("firehose marshal failed", "kind", kind, "error", err)
		return
	}
	value, err := json.Marshal(Record{
		Kind:      kind,
		UserID:    userID,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	if err := p.producer.Publish(ctx, &kafka.Message{
		Key:   []byte(userID),
		Value: value,
	}); err != nil {
		p.logger.Warn("firehose publish failed", "kind", kind, "error", err)
	}
}

// Close 关闭底层生产者
func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
