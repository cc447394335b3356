// pkg/web/config.go
package web

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Config Web 服务配置
type Config struct {
	Addr         string        `mapstructure:"addr" json:"addr" yaml:"addr"`
	Mode         string        `mapstructure:"mode" json:"mode" yaml:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		Mode:         gin.ReleaseMode,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return nil
}
