package web

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/core"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/logging"
)

// Options web 模块选项
type Options struct {
	Server ServerOptions
	// Section 非空时从该配置节读取 ServerOptions，覆盖 Server
	Section    string
	Mode       string
	Middleware []gin.HandlerFunc
}

// BuilderOption 用于配置 Options
type BuilderOption func(*Options)

// WithPort 设置端口
func WithPort(port int) BuilderOption {
	return func(o *Options) {
		o.Server.Addr = fmt.Sprintf(":%d", port)
	}
}

// WithAddr 设置监听地址
func WithAddr(addr string) BuilderOption {
	return func(o *Options) {
		o.Server.Addr = addr
	}
}

// WithSection 从配置节读取主机选项
func WithSection(section string) BuilderOption {
	return func(o *Options) {
		o.Section = section
	}
}

// WithMode 设置 gin 模式，默认 release
func WithMode(mode string) BuilderOption {
	return func(o *Options) {
		o.Mode = mode
	}
}

// WithMiddleware 添加全局 gin 中间件
func WithMiddleware(middleware ...gin.HandlerFunc) BuilderOption {
	return func(o *Options) {
		o.Middleware = append(o.Middleware, middleware...)
	}
}

// Provide 绑定 *Router 与 *Host
func Provide(opts ...BuilderOption) di.Provider {
	options := Options{Mode: gin.ReleaseMode}
	for _, opt := range opts {
		opt(&options)
	}
	return provide(options)
}

func provide(options Options) di.Provider {
	return func(c *di.Container) error {
		gin.SetMode(options.Mode)
		err := di.Bind[*Router](c, func(logger logging.Logger) *Router {
			return NewRouter(logger, options.Middleware...)
		})
		if err != nil {
			return err
		}
		return di.Bind[*Host](c, func(r *Router, logger logging.Logger, cfg config.Configuration) (*Host, error) {
			server := options.Server
			if options.Section != "" {
				if err := cfg.Bind(options.Section, &server); err != nil {
					return nil, fmt.Errorf("web: failed to load section '%s': %w", options.Section, err)
				}
			}
			return NewHost(r, server, logger), nil
		})
	}
}

// New 启用 Web 能力：注册路由器与主机，并把主机作为托管服务运行。
// 生效的 Options 记录在 Runtime.Features 中，同一 Runtime 只能启用一次。
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		if _, ok := core.GetFeature[*Options](rt); ok {
			return fmt.Errorf("web: already enabled")
		}
		options := Options{Mode: gin.ReleaseMode}
		for _, opt := range opts {
			opt(&options)
		}
		rt.Features.Set(&options)
		return rt.Apply(
			core.WithProvider(provide(options)),
			core.WithHostedService(di.KeyOf[*Host]()),
		)
	}
}
