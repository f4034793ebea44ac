package cron

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/logging"
)

// ErrJobMethod 声明的成员不是可调度的方法。
var ErrJobMethod = errors.New("cron: invalid job method")

// ScheduleOptions 是 Schedule 声明的参数。直接传 cron 表达式等价于 ScheduleOptions{Spec: s}。
type ScheduleOptions struct {
	Spec string
	// Name 默认为 "类型.方法"
	Name string
}

// Schedule 把服务方法注册为定时任务。方法签名可以是 func()、func() error
// 或 func(context.Context) error：
//
//	func init() {
//		di.Class[Cleaner](cron.Schedule.On("Sweep", "@every 1m"))
//	}
var Schedule = di.DefineDeclarationKind[*scheduleHandler]()

type scheduleHandler struct {
	di.Declaration
	Scheduler *Scheduler     `di:""`
	Logger    logging.Logger `di:"?"`

	name string
}

func (h *scheduleHandler) OnCreate() error {
	var opts ScheduleOptions
	switch o := h.Options.(type) {
	case string:
		opts.Spec = o
	case ScheduleOptions:
		opts = o
	default:
		return fmt.Errorf("cron: unsupported schedule options %T", h.Options)
	}
	if opts.Name == "" {
		opts.Name = fmt.Sprintf("%s.%s", h.Class.Name(), h.Member)
	}

	run, err := jobFunc(h.Instance, h.Member)
	if err != nil {
		return fmt.Errorf("%w: %v.%s: %v", ErrJobMethod, h.Class, h.Member, err)
	}

	name := opts.Name
	if err := h.Scheduler.Add(name, opts.Spec, func() {
		if err := run(); err != nil && h.Logger != nil {
			h.Logger.Error("定时任务失败", logging.F("job", name), logging.Err(err))
		}
	}); err != nil {
		return err
	}
	h.name = name
	return nil
}

func (h *scheduleHandler) OnDestroy() error {
	if h.name != "" {
		h.Scheduler.Remove(h.name)
	}
	return nil
}

func jobFunc(instance any, member string) (func() error, error) {
	m := reflect.ValueOf(instance).MethodByName(member)
	if !m.IsValid() {
		return nil, errors.New("method not found")
	}
	switch fn := m.Interface().(type) {
	case func():
		return func() error { fn(); return nil }, nil
	case func() error:
		return fn, nil
	case func(context.Context) error:
		return func() error { return fn(context.Background()) }, nil
	}
	return nil, fmt.Errorf("unsupported signature %v", m.Type())
}
