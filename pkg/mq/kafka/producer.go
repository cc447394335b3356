// pkg/mq/kafka/producer.go
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message 生产者消息
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ProducerStats 生产者统计
type ProducerStats struct {
	MessagesProduced  int64
	MessagesSucceeded int64
	MessagesFailed    int64
	LastMessageTime   time.Time
}

// Producer Kafka 生产者
type Producer struct {
	topic  string
	writer *kafka.Writer

	stats  ProducerStats
	closed atomic.Bool
}

// NewProducer 创建指定主题的生产者
func NewProducer(cfg *Config, topic string) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.Producer.BatchSize,
		BatchTimeout:           cfg.Producer.BatchTimeout,
		MaxAttempts:            cfg.Producer.MaxRetries + 1,
		WriteTimeout:           cfg.Producer.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.Producer.RequiredAcks),
		Async:                  cfg.Producer.Async,
		AllowAutoTopicCreation: true,
	}

	return &Producer{topic: topic, writer: writer}, nil
}

// Publish 发布单条消息
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	atomic.AddInt64(&p.stats.MessagesProduced, 1)

	kafkaMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
	}
	if len(msg.Headers) > 0 {
		headers := make([]kafka.Header, 0, len(msg.Headers))
		for k, v := range msg.Headers {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		kafkaMsg.Headers = headers
	}

	err := p.writer.WriteMessages(ctx, kafkaMsg)
	if err != nil {
		atomic.AddInt64(&p.stats.MessagesFailed, 1)
		return err
	}

	atomic.AddInt64(&p.stats.MessagesSucceeded, 1)
	p.stats.LastMessageTime = time.Now()
	return nil
}

// Stats 返回生产者统计快照
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesProduced:  atomic.LoadInt64(&p.stats.MessagesProduced),
		MessagesSucceeded: atomic.LoadInt64(&p.stats.MessagesSucceeded),
		MessagesFailed:    atomic.LoadInt64(&p.stats.MessagesFailed),
		LastMessageTime:   p.stats.LastMessageTime,
	}
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
