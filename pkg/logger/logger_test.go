package logger

import (
	"testing"
)

// TestNewDefault 测试默认配置创建
func TestNewDefault(t *testing.T) {
	l, err := New(nil)
	if err != nil {
		t.Fatalf("New with nil config failed: %v", err)
	}
	l.Info("hello", "key", "value")
	l.Named("sub").Debug("should be filtered at info level")
}

// TestConfigValidate 测试配置校验
func TestConfigValidate(t *testing.T) {
	cfg := &Config{
		EnableConsole: false,
		EnableFile:    false,
	}
	if err := cfg.Validate(); err != ErrNoOutputEnabled {
		t.Errorf("expected ErrNoOutputEnabled, got %v", err)
	}

	cfg = &Config{
		EnableFile: true,
	}
	if err := cfg.Validate(); err != ErrInvalidOutputPath {
		t.Errorf("expected ErrInvalidOutputPath, got %v", err)
	}
}

// TestFileOutput 测试文件输出
func TestFileOutput(t *testing.T) {
	path := t.TempDir() + "/app.log"
	l, err := New(&Config{
		Level:      DebugLevel,
		Format:     JSONFormat,
		EnableFile: true,
		OutputPath: path,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.WithFields("service", "test").Info("written to file")
	if err := l.Sync(); err != nil {
		// stdout sync 在部分平台会报错，文件模式不应报错
		t.Logf("sync: %v", err)
	}
}

// TestToZapFields 测试 key-value 转换
func TestToZapFields(t *testing.T) {
	if got := toZapFields("a", 1, "b", 2); len(got) != 2 {
		t.Errorf("expected 2 fields, got %d", len(got))
	}
	// 奇数个参数视为无效
	if got := toZapFields("a"); got != nil {
		t.Errorf("expected nil for odd arguments, got %v", got)
	}
	// 非字符串 key 跳过
	if got := toZapFields(1, "a", "b", 2); len(got) != 1 {
		t.Errorf("expected 1 field, got %d", len(got))
	}
}
