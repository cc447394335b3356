// pkg/database/postgres/config.go
package postgres

import "time"

// Config PostgreSQL 配置
type Config struct {
	Host     string `mapstructure:"host" json:"host" yaml:"host"`
	Port     int    `mapstructure:"port" json:"port" yaml:"port"`
	User     string `mapstructure:"user" json:"user" yaml:"user"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	DBName   string `mapstructure:"db_name" json:"db_name" yaml:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode" json:"ssl_mode" yaml:"ssl_mode"` // disable, require, verify-ca, verify-full

	// Pool 连接池配置
	Pool PoolConfig `mapstructure:"pool" json:"pool" yaml:"pool"`

	// ConnectTimeout 连接超时
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout"`
	// QueryTimeout 查询超时
	QueryTimeout time.Duration `mapstructure:"query_timeout" json:"query_timeout" yaml:"query_timeout"`
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxConns          int32         `mapstructure:"max_conns" json:"max_conns" yaml:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns" json:"min_conns" yaml:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime" json:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time" json:"max_conn_idle_time" yaml:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period" json:"health_check_period" yaml:"health_check_period"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		DBName:  "couriersync",
		SSLMode: "disable",
		Pool: PoolConfig{
			MaxConns:          25,
			MinConns:          5,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   30 * time.Minute,
			HealthCheckPeriod: time.Minute,
		},
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   30 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port <= 0 {
		c.Port = def.Port
	}
	if c.User == "" {
		c.User = def.User
	}
	if c.DBName == "" {
		c.DBName = def.DBName
	}
	if c.SSLMode == "" {
		c.SSLMode = def.SSLMode
	}
	if c.Pool.MaxConns <= 0 {
		c.Pool.MaxConns = def.Pool.MaxConns
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = def.QueryTimeout
	}
	return nil
}
