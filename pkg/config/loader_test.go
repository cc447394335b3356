package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// loaderTestConfig 测试配置结构
type loaderTestConfig struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Realtime struct {
		BaseDelay    time.Duration `mapstructure:"base_delay"`
		MaxReconnect int           `mapstructure:"max_reconnect"`
	} `mapstructure:"realtime"`
}

// createTestConfigFile 创建测试配置文件
func createTestConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}
	return path
}

// TestLoadFile 测试加载配置文件
func TestLoadFile(t *testing.T) {
	path := createTestConfigFile(t, `
server:
  addr: ":8443"
realtime:
  base_delay: 2s
  max_reconnect: 5
`)

	var cfg loaderTestConfig
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Addr != ":8443" {
		t.Errorf("expected addr :8443, got %s", cfg.Server.Addr)
	}
	if cfg.Realtime.BaseDelay != 2*time.Second {
		t.Errorf("expected base_delay 2s, got %v", cfg.Realtime.BaseDelay)
	}
	if cfg.Realtime.MaxReconnect != 5 {
		t.Errorf("expected max_reconnect 5, got %d", cfg.Realtime.MaxReconnect)
	}
}

// TestLoadFileEnvOverride 测试环境变量覆盖配置文件
func TestLoadFileEnvOverride(t *testing.T) {
	path := createTestConfigFile(t, `
server:
  addr: ":8443"
`)

	t.Setenv(EnvPrefix+"_SERVER_ADDR", ":9000")

	var cfg loaderTestConfig
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("expected env override :9000, got %s", cfg.Server.Addr)
	}
}

// TestLoadFileMissing 测试加载不存在的文件
func TestLoadFileMissing(t *testing.T) {
	var cfg loaderTestConfig
	if err := LoadFile("/nonexistent/config.yaml", &cfg); err == nil {
		t.Error("expected error for missing file")
	}
}
