// pkg/realtime/config.go
package realtime

import "time"

// Config 会话配置
type Config struct {
	// URL 网关地址，"ws://host:port/ws" 或 "wss://..."
	URL string `mapstructure:"url" json:"url" yaml:"url"`

	// DialTimeout 握手超时
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout"`

	// WriteTimeout 单条消息写超时
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`

	// BaseDelay 重连基础延迟，第 n 次重连等待 BaseDelay * n（线性退避）
	BaseDelay time.Duration `mapstructure:"base_delay" json:"base_delay" yaml:"base_delay"`

	// MaxReconnectAttempts 最大重连次数，耗尽后回到 idle，需显式重新 Open
	MaxReconnectAttempts int `mapstructure:"max_reconnect_attempts" json:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`

	// LivenessInterval 活性探测间隔，定期校对传输层与本地状态
	LivenessInterval time.Duration `mapstructure:"liveness_interval" json:"liveness_interval" yaml:"liveness_interval"`

	// SendQueueSize 发送队列大小，队列满时消息被丢弃
	SendQueueSize int `mapstructure:"send_queue_size" json:"send_queue_size" yaml:"send_queue_size"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:          10 * time.Second,
		WriteTimeout:         10 * time.Second,
		BaseDelay:            2 * time.Second,
		MaxReconnectAttempts: 5,
		LivenessInterval:     5 * time.Second,
		SendQueueSize:        64,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil || c.URL == "" {
		return ErrInvalidURL
	}
	def := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = def.LivenessInterval
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = def.SendQueueSize
	}
	return nil
}

// BackoffDelay 第 attempt 次重连前的等待时间（attempt 从 1 开始）
func (c *Config) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return c.BaseDelay * time.Duration(attempt)
}
