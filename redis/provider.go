package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/core"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/internal/clients"
	"github.com/gocrud/decor/logging"
	"github.com/redis/go-redis/v9"
)

var tokens clients.Tokens[*redis.Client]

// Named 返回名为 name 的客户端的键：
//
//	di.Class[Cache](di.Inject("Client", redis.Named("cache")))
func Named(name string) di.Key {
	return tokens.Key(name)
}

type builder struct {
	options []*Options
	section string
}

// BuilderOption 配置 Redis 客户端
type BuilderOption func(*builder)

// WithClient 添加客户端，名为 "default" 的客户端同时以 *redis.Client 绑定
func WithClient(name string, configure ...func(*Options)) BuilderOption {
	return func(b *builder) {
		opts := NewDefaultOptions(name)
		for _, fn := range configure {
			fn(opts)
		}
		b.options = append(b.options, opts)
	}
}

// WithSection 从配置节读取客户端，配置节是名称到 Options 的映射
func WithSection(section string) BuilderOption {
	return func(b *builder) {
		b.section = section
	}
}

func (b *builder) load(c *di.Container) ([]Options, error) {
	all := make([]Options, 0, len(b.options))
	for _, o := range b.options {
		all = append(all, *o)
	}
	if b.section != "" {
		cfg, err := di.Get[config.Configuration](c)
		if err != nil {
			return nil, err
		}
		var raw map[string]Options
		if err := cfg.Bind(b.section, &raw); err != nil {
			return nil, fmt.Errorf("redis: failed to load section '%s': %w", b.section, err)
		}
		names := make([]string, 0, len(raw))
		for name := range raw {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			opts := NewDefaultOptions(name)
			merge(opts, raw[name])
			all = append(all, *opts)
		}
	}

	var errs []error
	seen := make(map[string]bool)
	for _, o := range all {
		if seen[o.Name] {
			errs = append(errs, fmt.Errorf("redis client '%s' already configured", o.Name))
		}
		seen[o.Name] = true
		if err := o.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("invalid redis configuration for '%s': %w", o.Name, err))
		}
	}
	return all, errors.Join(errs...)
}

// merge 用配置中的非零值覆盖默认值
func merge(dst *Options, src Options) {
	if src.Addr != "" {
		dst.Addr = src.Addr
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.DB != 0 {
		dst.DB = src.DB
	}
	if src.DialTimeout != 0 {
		dst.DialTimeout = src.DialTimeout
	}
	if src.ReadTimeout != 0 {
		dst.ReadTimeout = src.ReadTimeout
	}
	if src.WriteTimeout != 0 {
		dst.WriteTimeout = src.WriteTimeout
	}
	if src.PoolSize != 0 {
		dst.PoolSize = src.PoolSize
	}
	if src.MinIdleConns != 0 {
		dst.MinIdleConns = src.MinIdleConns
	}
	if src.MaxRetries != 0 {
		dst.MaxRetries = src.MaxRetries
	}
	dst.SkipPing = dst.SkipPing || src.SkipPing
}

// Provide 绑定 *ClientFactory，并把每个客户端以 Named(name) 绑定。
// 客户端在工厂首次解析时创建。
func Provide(opts ...BuilderOption) di.Provider {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	return func(c *di.Container) error {
		all, err := b.load(c)
		if err != nil {
			return err
		}

		err = di.Bind[*ClientFactory](c, func(c *di.Container) (*ClientFactory, error) {
			logger, _ := di.GetOptional[logging.Logger](c)
			f := NewClientFactory(logger)
			for _, o := range all {
				if err := f.Register(context.Background(), o); err != nil {
					_ = f.Dispose()
					return nil, err
				}
			}
			return f, nil
		})
		if err != nil {
			return err
		}

		names := make([]string, len(all))
		for i, o := range all {
			names[i] = o.Name
		}
		return clients.Bind(c, &tokens, names, (*ClientFactory).Get)
	}
}

// New 启用 Redis 客户端
func New(opts ...BuilderOption) core.Option {
	return core.WithProvider(Provide(opts...))
}
