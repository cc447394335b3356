// pkg/logger/interface.go
package logger

// Logger 日志接口
// 其他 pkg 模块引用此接口，避免直接依赖 zap
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	// 派生方法
	Named(name string) Logger
	WithFields(keysAndValues ...interface{}) Logger

	// 同步
	Sync() error
}
