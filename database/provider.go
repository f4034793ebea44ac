package database

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/core"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/internal/clients"
	"github.com/gocrud/decor/logging"
	"gorm.io/gorm"
)

var tokens clients.Tokens[*gorm.DB]

// Named 返回名为 name 的数据库的键
func Named(name string) di.Key {
	return tokens.Key(name)
}

type builder struct {
	options []*Options
	section string
	migrate map[string][]any
}

// BuilderOption 配置数据库
type BuilderOption func(*builder)

// WithDatabase 添加数据库，名为 "default" 的数据库同时以 *gorm.DB 绑定
func WithDatabase(name string, dialector gorm.Dialector, configure ...func(*Options)) BuilderOption {
	return func(b *builder) {
		opts := NewDefaultOptions(name)
		opts.Dialector = dialector
		for _, fn := range configure {
			fn(opts)
		}
		b.options = append(b.options, opts)
	}
}

// WithSection 从配置节读取数据库，配置节是名称到 Options 的映射
func WithSection(section string) BuilderOption {
	return func(b *builder) {
		b.section = section
	}
}

// WithAutoMigrate 为名为 name 的数据库追加自动迁移的模型，对配置节中的数据库同样有效
func WithAutoMigrate(name string, models ...any) BuilderOption {
	return func(b *builder) {
		if b.migrate == nil {
			b.migrate = make(map[string][]any)
		}
		b.migrate[name] = append(b.migrate[name], models...)
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
			return nil, fmt.Errorf("database: failed to load section '%s': %w", b.section, err)
		}
		names := make([]string, 0, len(raw))
		for name := range raw {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			opts := NewDefaultOptions(name)
			o := raw[name]
			opts.Driver, opts.DSN = o.Driver, o.DSN
			if o.MaxIdleConns != 0 {
				opts.MaxIdleConns = o.MaxIdleConns
			}
			if o.MaxOpenConns != 0 {
				opts.MaxOpenConns = o.MaxOpenConns
			}
			if o.MaxLifetime != 0 {
				opts.MaxLifetime = o.MaxLifetime
			}
			all = append(all, *opts)
		}
	}

	var errs []error
	seen := make(map[string]bool)
	for i := range all {
		o := &all[i]
		o.AutoMigrate = append(o.AutoMigrate, b.migrate[o.Name]...)
		if seen[o.Name] {
			errs = append(errs, fmt.Errorf("database '%s' already configured", o.Name))
		}
		seen[o.Name] = true
		if err := o.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("invalid configuration for '%s': %w", o.Name, err))
		}
	}
	return all, errors.Join(errs...)
}

// Provide 绑定 *Factory，并把每个数据库以 Named(name) 绑定。
// 数据库在工厂首次解析时打开。
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
				if err := f.Register(o); err != nil {
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

// New 启用数据库
func New(opts ...BuilderOption) core.Option {
	return core.WithProvider(Provide(opts...))
}
