// pkg/config/options.go
package config

// Options 加载选项
type Options struct {
	// DefaultPath 默认配置文件路径
	DefaultPath string

	// RequireFile 配置文件不存在时是否报错
	RequireFile bool

	// Defaults 最低优先级的默认值，key 使用点分路径，例如 "log.level"
	Defaults map[string]any
}

// Option 选项函数
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		DefaultPath: "config.yaml",
		RequireFile: false,
		Defaults:    make(map[string]any),
	}
}

// WithDefaultPath 设置默认配置文件路径
func WithDefaultPath(path string) Option {
	return func(o *Options) {
		o.DefaultPath = path
	}
}

// WithRequireFile 要求配置文件必须存在
func WithRequireFile() Option {
	return func(o *Options) {
		o.RequireFile = true
	}
}

// WithDefault 设置单个默认值
func WithDefault(key string, value any) Option {
	return func(o *Options) {
		o.Defaults[key] = value
	}
}
