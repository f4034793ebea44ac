package core

import (
	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/hosting"
	"github.com/gocrud/decor/logging"
)

// Option 定义了修改 Runtime 状态的函数签名
type Option func(rt *Runtime) error

// WithProvider 注册在 Build 时执行的 Provider
func WithProvider(providers ...di.Provider) Option {
	return func(rt *Runtime) error {
		rt.providers = append(rt.providers, providers...)
		return nil
	}
}

// WithInjectMode 设置容器的注入模式
func WithInjectMode(mode di.InjectMode) Option {
	return func(rt *Runtime) error {
		rt.mode = mode
		return nil
	}
}

// WithLogging 配置日志。未调用时使用控制台日志。
func WithLogging(configure func(b *logging.LoggingBuilder)) Option {
	return func(rt *Runtime) error {
		if rt.loggingBuilder == nil {
			rt.loggingBuilder = logging.NewLoggingBuilder()
		}
		configure(rt.loggingBuilder)
		return nil
	}
}

// WithConfiguration 配置配置源，后添加的覆盖先添加的
func WithConfiguration(configure func(b *config.ConfigurationBuilder)) Option {
	return func(rt *Runtime) error {
		configure(rt.configBuilder)
		return nil
	}
}

// WithHostedService 把 key 对应的服务作为托管服务，在 Start 时解析并启动
func WithHostedService(key di.Key) Option {
	return func(rt *Runtime) error {
		for _, k := range rt.hostedKeys {
			if k == key {
				return nil
			}
		}
		rt.hostedKeys = append(rt.hostedKeys, key)
		return nil
	}
}

// WithWorker 把一个阻塞函数注册为后台任务
func WithWorker(name string, fn hosting.WorkerFunc) Option {
	return func(rt *Runtime) error {
		rt.workers = append(rt.workers, hosting.NewWorker(name, fn))
		return nil
	}
}
