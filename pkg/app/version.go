// pkg/app/version.go
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// 构建信息，发布时经 -ldflags "-X '.../pkg/app.Version=v1.0.0'" 注入
// 未注入时保持开发期默认值
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// Info 当前二进制的构建与运行时信息
type Info struct {
	AppName   string
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
}

// GetInfo 汇总构建信息，应用名取自可执行文件名
func GetInfo() Info {
	return Info{
		AppName:   execName(),
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String 单行摘要，进程启动时打印
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)",
		i.AppName, i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}

func execName() string {
	if p, err := os.Executable(); err == nil {
		return filepath.Base(p)
	}
	return filepath.Base(os.Args[0])
}
