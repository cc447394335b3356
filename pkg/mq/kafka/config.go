// pkg/mq/kafka/config.go
package kafka

import "time"

// Config Kafka 配置
type Config struct {
	// Brokers broker 地址列表
	Brokers []string `mapstructure:"brokers" json:"brokers" yaml:"brokers"`

	// Producer 生产者配置
	Producer ProducerConfig `mapstructure:"producer" json:"producer" yaml:"producer"`
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	// Async 是否异步发送（默认 false，同步发送）
	Async bool `mapstructure:"async" json:"async" yaml:"async"`

	// BatchSize 批量大小（异步模式下，累积多少条消息后发送）
	BatchSize int `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size"`

	// BatchTimeout 批量超时时间（异步模式下，最长等待时间）
	BatchTimeout time.Duration `mapstructure:"batch_timeout" json:"batch_timeout" yaml:"batch_timeout"`

	// MaxRetries 最大重试次数
	MaxRetries int `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`

	// RequiredAcks 确认模式：0 不等待，1 等待 Leader，-1 等待所有副本
	RequiredAcks int `mapstructure:"required_acks" json:"required_acks" yaml:"required_acks"`

	// WriteTimeout 写超时
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Brokers: []string{"localhost:9092"},
		Producer: ProducerConfig{
			Async:        true,
			BatchSize:    100,
			BatchTimeout: time.Second,
			MaxRetries:   3,
			RequiredAcks: 1,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	def := DefaultConfig()
	if c.Producer.BatchSize <= 0 {
		c.Producer.BatchSize = def.Producer.BatchSize
	}
	if c.Producer.BatchTimeout <= 0 {
		c.Producer.BatchTimeout = def.Producer.BatchTimeout
	}
	if c.Producer.WriteTimeout <= 0 {
		c.Producer.WriteTimeout = def.Producer.WriteTimeout
	}
	return nil
}
