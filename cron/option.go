package cron

import (
	"fmt"
	"reflect"

	"github.com/gocrud/decor/core"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/logging"
)

type jobDefinition struct {
	spec    string
	name    string
	handler any
}

type builder struct {
	options Options
	jobs    []jobDefinition
}

// BuilderOption 配置调度器
type BuilderOption func(*builder)

// WithSeconds 启用秒级精度
func WithSeconds() BuilderOption {
	return func(b *builder) { b.options.Seconds = true }
}

// WithLocation 设置时区
func WithLocation(location string) BuilderOption {
	return func(b *builder) { b.options.Location = location }
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() BuilderOption {
	return func(b *builder) { b.options.Verbose = true }
}

// WithJob 添加任务。handler 是任意函数，参数在每次执行时从容器解析：
//
//	cron.WithJob("*/5 * * * *", "sync", func(svc *DataService) { svc.Sync() })
func WithJob(spec, name string, handler any) BuilderOption {
	return func(b *builder) {
		b.jobs = append(b.jobs, jobDefinition{spec: spec, name: name, handler: handler})
	}
}

// Provide 绑定 *Scheduler
func Provide(opts ...BuilderOption) di.Provider {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b.provide()
}

func (b *builder) provide() di.Provider {
	return func(c *di.Container) error {
		return di.Bind[*Scheduler](c, func(c *di.Container) (*Scheduler, error) {
			logger, _ := di.GetOptional[logging.Logger](c)
			s, err := NewScheduler(logger, b.options)
			if err != nil {
				return nil, err
			}
			for _, job := range b.jobs {
				fn, err := wrapHandler(c, s.logger, job.handler)
				if err != nil {
					return nil, fmt.Errorf("cron: job '%s': %w", job.name, err)
				}
				if err := s.Add(job.name, job.spec, fn); err != nil {
					return nil, err
				}
			}
			return s, nil
		})
	}
}

// New 启用定时任务：注册调度器并作为托管服务运行
func New(opts ...BuilderOption) core.Option {
	return func(rt *core.Runtime) error {
		if _, ok := core.GetFeature[*Options](rt); ok {
			return fmt.Errorf("cron: already enabled")
		}
		b := &builder{}
		for _, opt := range opts {
			opt(b)
		}
		rt.Features.Set(&b.options)
		return rt.Apply(
			core.WithProvider(b.provide()),
			core.WithHostedService(di.KeyOf[*Scheduler]()),
		)
	}
}

// wrapHandler 把任意函数包装为任务，参数在每次执行时从容器解析
func wrapHandler(c *di.Container, logger logging.Logger, handler any) (func(), error) {
	if fn, ok := handler.(func()); ok {
		return fn, nil
	}
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler must be a function, got %T", handler)
	}
	t := v.Type()

	return func() {
		args := make([]reflect.Value, t.NumIn())
		for i := range args {
			instance, err := c.Get(di.TypeKey(t.In(i)))
			if err != nil {
				logger.Error("任务参数解析失败", logging.F("param", t.In(i).String()), logging.Err(err))
				return
			}
			args[i] = reflect.ValueOf(instance)
		}
		out := v.Call(args)
		if len(out) > 0 {
			if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
				logger.Error("任务执行失败", logging.Err(err))
			}
		}
	}, nil
}
