// pkg/app/config.go
package app

import (
	"os"
	"path/filepath"

	"github.com/lk2023060901/couriersync/pkg/config"
)

// LoadConfig 集成 pkg/config 提供统一加载能力
// 优先级：命令行显式参数 > 环境变量 > 配置文件 > 默认值
// 默认从可执行文件同目录下的 config.yaml 读取
func LoadConfig(target any, opts ...config.Option) error {
	execDir, err := GetExecDir()
	if err != nil {
		execDir = "."
	}

	defaults := []config.Option{
		config.WithDefaultPath(filepath.Join(execDir, "config.yaml")),
	}
	return config.Load(target, append(defaults, opts...)...)
}

// GetExecDir 获取可执行文件所在目录（处理符号链接）
func GetExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	realPath, err := filepath.EvalSymlinks(execPath)
	if err != nil {
		return filepath.Dir(execPath), nil
	}
	return filepath.Dir(realPath), nil
}
