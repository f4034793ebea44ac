package mongodb

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
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var tokens clients.Tokens[*mongo.Client]

// Named 返回名为 name 的客户端的键
func Named(name string) di.Key {
	return tokens.Key(name)
}

type builder struct {
	options []*Options
	section string
}

// BuilderOption 配置 MongoDB 客户端
type BuilderOption func(*builder)

// WithClient 添加客户端，名为 "default" 的客户端同时以 *mongo.Client 绑定
func WithClient(name, uri string, configure ...func(*Options)) BuilderOption {
	return func(b *builder) {
		opts := NewDefaultOptions(name, uri)
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
			return nil, fmt.Errorf("mongodb: failed to load section '%s': %w", b.section, err)
		}
		names := make([]string, 0, len(raw))
		for name := range raw {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			o := raw[name]
			opts := NewDefaultOptions(name, o.URI)
			opts.Username, opts.Password, opts.Ping = o.Username, o.Password, o.Ping
			if o.MaxPoolSize != 0 {
				opts.MaxPoolSize = o.MaxPoolSize
			}
			if o.MinPoolSize != 0 {
				opts.MinPoolSize = o.MinPoolSize
			}
			if o.Timeout != 0 {
				opts.Timeout = o.Timeout
			}
			all = append(all, *opts)
		}
	}

	var errs []error
	seen := make(map[string]bool)
	for _, o := range all {
		if seen[o.Name] {
			errs = append(errs, fmt.Errorf("mongo client '%s' already configured", o.Name))
		}
		seen[o.Name] = true
		if err := o.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("invalid mongo configuration for '%s': %w", o.Name, err))
		}
	}
	return all, errors.Join(errs...)
}

// Provide 绑定 *Factory，并把每个客户端以 Named(name) 绑定
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

		err = di.Bind[*Factory](c, func(c *di.Container) (*Factory, error) {
			logger, _ := di.GetOptional[logging.Logger](c)
			f := NewFactory(logger)
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
		return clients.Bind(c, &tokens, names, (*Factory).Get)
	}
}

// New 启用 MongoDB 客户端
func New(opts ...BuilderOption) core.Option {
	return core.WithProvider(Provide(opts...))
}
