// pkg/mq/kafka/errors.go
package kafka

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("kafka: config is nil")

	// ErrNoBrokers 未配置 broker
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrProducerClosed 生产者已关闭
	ErrProducerClosed = errors.New("kafka: producer is closed")
)
