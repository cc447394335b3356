// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 COURIERSYNC_LOG_LEVEL -> log.level
const EnvPrefix = "COURIERSYNC"

var configPath string

// Load 加载配置到目标结构体
// 优先级：1. 命令行显式参数 > 2. 环境变量 > 3. 配置文件 > 4. 默认值
func Load(target any, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	// 注册命令行参数
	if pflag.Lookup("config") == nil {
		pflag.StringVarP(&configPath, "config", "c", o.DefaultPath, "path to config file")
	}
	if !pflag.Parsed() {
		pflag.Parse()
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// 确定配置文件路径
	// 优先级：Flag 显式指定 > 环境变量 COURIERSYNC_CONFIG > 默认路径
	finalPath := configPath
	if !pflag.CommandLine.Changed("config") {
		if envConfig := os.Getenv(EnvPrefix + "_CONFIG"); envConfig != "" {
			finalPath = envConfig
		}
	}

	// 设置默认值（会被配置文件和环境变量覆盖）
	for key, val := range o.Defaults {
		v.SetDefault(key, val)
	}

	if finalPath != "" {
		if _, err := os.Stat(finalPath); err != nil {
			if o.RequireFile {
				return fmt.Errorf("config file not found at %s", finalPath)
			}
		} else {
			v.SetConfigFile(finalPath)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", finalPath, err)
			}
			configPath = finalPath
		}
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// LoadFile 从指定文件加载配置（测试和工具使用，绕过 pflag）
func LoadFile(path string, target any) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// GetConfigPath 返回最终使用的配置文件路径
func GetConfigPath() string {
	return configPath
}
