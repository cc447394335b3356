// pkg/logger/logger.go
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 确保 BaseLogger 实现了 Logger 接口
var _ Logger = (*BaseLogger)(nil)

// BaseLogger 基于 zap 的日志记录器实现
type BaseLogger struct {
	zl     *zap.Logger
	config *Config
}

// New 创建新的 BaseLogger
func New(cfg *Config) (*BaseLogger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &BaseLogger{config: cfg}

	zl, err := l.build()
	if err != nil {
		return nil, err
	}
	l.zl = zl

	return l, nil
}

// Default 返回仅输出到控制台的基础 Logger，供尚未加载配置的启动阶段使用
func Default() Logger {
	l, err := New(DefaultConfig())
	if err != nil {
		return NewNoop()
	}
	return l
}

// build 构建 zap logger
func (l *BaseLogger) build() (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if l.config.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	switch l.config.Format {
	case JSONFormat:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	writers := make([]zapcore.WriteSyncer, 0, 2)
	if l.config.EnableConsole {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}
	if l.config.EnableFile {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   l.config.OutputPath,
			MaxSize:    l.config.Rotation.MaxSize,
			MaxBackups: l.config.Rotation.MaxBackups,
			MaxAge:     l.config.Rotation.MaxAge,
			Compress:   l.config.Rotation.Compress,
		}))
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.NewMultiWriteSyncer(writers...),
		parseLevel(l.config.Level),
	)

	options := []zap.Option{
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	}
	if l.config.Development {
		options = append(options, zap.Development())
	}

	return zap.New(core, options...), nil
}

// parseLevel 解析日志等级
func parseLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug 记录 debug 级别日志
func (l *BaseLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.zl.Debug(msg, toZapFields(keysAndValues...)...)
}

// Info 记录 info 级别日志
func (l *BaseLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Info(msg, toZapFields(keysAndValues...)...)
}

// Warn 记录 warn 级别日志
func (l *BaseLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.zl.Warn(msg, toZapFields(keysAndValues...)...)
}

// Error 记录 error 级别日志
func (l *BaseLogger) Error(msg string, keysAndValues ...interface{}) {
	l.zl.Error(msg, toZapFields(keysAndValues...)...)
}

// Named 创建具名 logger
func (l *BaseLogger) Named(name string) Logger {
	return &BaseLogger{
		zl:     l.zl.Named(name),
		config: l.config,
	}
}

// WithFields 添加字段
func (l *BaseLogger) WithFields(keysAndValues ...interface{}) Logger {
	fields := toZapFields(keysAndValues...)
	if len(fields) == 0 {
		return l
	}
	return &BaseLogger{
		zl:     l.zl.With(fields...),
		config: l.config,
	}
}

// Sync 同步日志
func (l *BaseLogger) Sync() error {
	return l.zl.Sync()
}

// toZapFields 将 key-value 对转换为 zap.Field
func toZapFields(keysAndValues ...interface{}) []zap.Field {
	if len(keysAndValues) == 0 || len(keysAndValues)%2 != 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
