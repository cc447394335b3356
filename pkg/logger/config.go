// pkg/logger/config.go
package logger

// Level 日志等级
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Format 日志格式
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

// Config 日志配置
type Config struct {
	Level  Level  `mapstructure:"level" json:"level" yaml:"level"`
	Format Format `mapstructure:"format" json:"format" yaml:"format"`

	// 输出配置
	EnableConsole bool   `mapstructure:"enable_console" json:"enable_console" yaml:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file" json:"enable_file" yaml:"enable_file"`
	OutputPath    string `mapstructure:"output_path" json:"output_path" yaml:"output_path"`

	// 轮换配置 (lumberjack)
	Rotation RotationConfig `mapstructure:"rotation" json:"rotation" yaml:"rotation"`

	// 开发模式（彩色输出、可读时间）
	Development bool `mapstructure:"development" json:"development" yaml:"development"`
}

// RotationConfig 轮换配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" json:"max_size" yaml:"max_size"`          // 单文件最大大小 (MB)
	MaxBackups int  `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"` // 保留的旧文件数量
	MaxAge     int  `mapstructure:"max_age" json:"max_age" yaml:"max_age"`             // 保留天数
	Compress   bool `mapstructure:"compress" json:"compress" yaml:"compress"`          // 是否压缩旧文件
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Level:         InfoLevel,
		Format:        ConsoleFormat,
		EnableConsole: true,
		EnableFile:    false,
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Level == "" {
		c.Level = InfoLevel
	}
	if c.Format == "" {
		c.Format = ConsoleFormat
	}
	if c.EnableFile && c.OutputPath == "" {
		return ErrInvalidOutputPath
	}
	if !c.EnableConsole && !c.EnableFile {
		return ErrNoOutputEnabled
	}
	return nil
}
