package di

import "github.com/gocrud/decor/logging"

// Option 配置容器。
type Option func(*Container)

// WithInjectMode 设置容器默认的注入模式，默认为 InjectStatic。
func WithInjectMode(mode InjectMode) Option {
	return func(c *Container) {
		c.mode = mode
	}
}

// WithLogger 设置容器的日志记录器。
func WithLogger(logger logging.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}
